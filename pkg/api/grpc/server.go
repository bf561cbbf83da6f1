// Package grpcapi exposes hosted CFPL programs through the Cloud Workflows
// gRPC surface, so the official Google Cloud Go client libraries can deploy
// and run programs. A workflow's source contents are the CFPL program, an
// execution's argument is its stdin and its result is the captured stdout.
package grpcapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/timestamppb"

	longrunningpb "cloud.google.com/go/longrunning/autogen/longrunningpb"
	executionspb "cloud.google.com/go/workflows/executions/apiv1/executionspb"
	workflowspb "cloud.google.com/go/workflows/apiv1/workflowspb"

	"github.com/lemonberrylabs/cfpl/pkg/cfpl"
	"github.com/lemonberrylabs/cfpl/pkg/runner"
	"github.com/lemonberrylabs/cfpl/pkg/store"
)

// Server implements the Workflows and Executions gRPC services.
type Server struct {
	workflowspb.UnimplementedWorkflowsServer
	executionspb.UnimplementedExecutionsServer
	longrunningpb.UnimplementedOperationsServer

	store  *store.Store
	runner *runner.Runner
	grpc   *grpc.Server
}

// New creates a new gRPC server wrapping the given store and runner.
func New(s *store.Store, r *runner.Runner) *Server {
	srv := &Server{
		store:  s,
		runner: r,
	}

	gs := grpc.NewServer()
	workflowspb.RegisterWorkflowsServer(gs, srv)
	executionspb.RegisterExecutionsServer(gs, srv)
	longrunningpb.RegisterOperationsServer(gs, srv)
	srv.grpc = gs

	return srv
}

// Serve starts listening on the given address and serves gRPC requests.
func (s *Server) Serve(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	return s.grpc.Serve(lis)
}

// GracefulStop gracefully stops the gRPC server.
func (s *Server) GracefulStop() {
	s.grpc.GracefulStop()
}

// --- Workflows Service ---

func (s *Server) CreateWorkflow(ctx context.Context, req *workflowspb.CreateWorkflowRequest) (*longrunningpb.Operation, error) {
	if req.GetWorkflowId() == "" {
		return nil, status.Error(codes.InvalidArgument, "workflow_id is required")
	}
	wfProto := req.GetWorkflow()
	if wfProto == nil {
		return nil, status.Error(codes.InvalidArgument, "workflow is required")
	}
	src := wfProto.GetSourceContents()
	if src == "" {
		return nil, status.Error(codes.InvalidArgument, "source_contents is required")
	}

	if _, err := cfpl.Check(src); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid program: %s", cfpl.Format(err))
	}

	p, err := s.store.CreateProgram(req.GetParent(), req.GetWorkflowId(), src, wfProto.GetDescription())
	if err != nil {
		return nil, statusFromStore(err)
	}

	return doneOperation("create-"+req.GetWorkflowId(), programToProto(p))
}

func (s *Server) GetWorkflow(ctx context.Context, req *workflowspb.GetWorkflowRequest) (*workflowspb.Workflow, error) {
	p, err := s.store.GetProgram(toProgramName(req.GetName()))
	if err != nil {
		return nil, statusFromStore(err)
	}
	return programToProto(p), nil
}

func (s *Server) ListWorkflows(ctx context.Context, req *workflowspb.ListWorkflowsRequest) (*workflowspb.ListWorkflowsResponse, error) {
	programs := s.store.ListPrograms(req.GetParent())

	pbWorkflows := make([]*workflowspb.Workflow, len(programs))
	for i, p := range programs {
		pbWorkflows[i] = programToProto(p)
	}

	return &workflowspb.ListWorkflowsResponse{
		Workflows: pbWorkflows,
	}, nil
}

func (s *Server) UpdateWorkflow(ctx context.Context, req *workflowspb.UpdateWorkflowRequest) (*longrunningpb.Operation, error) {
	wfProto := req.GetWorkflow()
	if wfProto == nil {
		return nil, status.Error(codes.InvalidArgument, "workflow is required")
	}

	src := wfProto.GetSourceContents()
	if src != "" {
		if _, err := cfpl.Check(src); err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "invalid program: %s", cfpl.Format(err))
		}
	}

	p, err := s.store.UpdateProgram(toProgramName(wfProto.GetName()), src, wfProto.GetDescription())
	if err != nil {
		return nil, statusFromStore(err)
	}

	return doneOperation("update-"+lastSegment(p.Name), programToProto(p))
}

func (s *Server) DeleteWorkflow(ctx context.Context, req *workflowspb.DeleteWorkflowRequest) (*longrunningpb.Operation, error) {
	name := toProgramName(req.GetName())
	if err := s.store.DeleteProgram(name); err != nil {
		return nil, statusFromStore(err)
	}

	return &longrunningpb.Operation{
		Name: fmt.Sprintf("projects/-/locations/-/operations/delete-%s", lastSegment(name)),
		Done: true,
	}, nil
}

// --- Executions Service ---

func (s *Server) CreateExecution(ctx context.Context, req *executionspb.CreateExecutionRequest) (*executionspb.Execution, error) {
	run, err := s.store.CreateRun(toProgramName(req.GetParent()), req.GetExecution().GetArgument())
	if err != nil {
		return nil, statusFromStore(err)
	}

	s.runner.Start(run)

	return runToProto(run), nil
}

func (s *Server) GetExecution(ctx context.Context, req *executionspb.GetExecutionRequest) (*executionspb.Execution, error) {
	run, err := s.store.GetRun(toRunName(req.GetName()))
	if err != nil {
		return nil, statusFromStore(err)
	}
	return runToProto(run), nil
}

func (s *Server) ListExecutions(ctx context.Context, req *executionspb.ListExecutionsRequest) (*executionspb.ListExecutionsResponse, error) {
	runs := s.store.ListRuns(toProgramName(req.GetParent()))

	pbExecs := make([]*executionspb.Execution, len(runs))
	for i, run := range runs {
		pbExecs[i] = runToProto(run)
	}

	return &executionspb.ListExecutionsResponse{
		Executions: pbExecs,
	}, nil
}

func (s *Server) CancelExecution(ctx context.Context, req *executionspb.CancelExecutionRequest) (*executionspb.Execution, error) {
	name := toRunName(req.GetName())
	if err := s.runner.Cancel(name); err != nil {
		return nil, statusFromStore(err)
	}

	run, err := s.store.GetRun(name)
	if err != nil {
		return nil, statusFromStore(err)
	}
	return runToProto(run), nil
}

// --- Internal helpers ---

// Resource names arrive in Workflows form (".../workflows/ID/executions/ID")
// and are stored in program form (".../programs/ID/runs/ID").
var (
	toStore = strings.NewReplacer("/workflows/", "/programs/", "/executions/", "/runs/")
	toWire  = strings.NewReplacer("/programs/", "/workflows/", "/runs/", "/executions/")
)

func toProgramName(name string) string { return toStore.Replace(name) }
func toRunName(name string) string     { return toStore.Replace(name) }
func toWireName(name string) string    { return toWire.Replace(name) }

func lastSegment(name string) string {
	return name[strings.LastIndex(name, "/")+1:]
}

func statusFromStore(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, store.ErrAlreadyExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, store.ErrFailedPrecondition):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func programToProto(p *store.Program) *workflowspb.Workflow {
	pb := &workflowspb.Workflow{
		Name:        toWireName(p.Name),
		Description: p.Description,
		RevisionId:  p.RevisionID,
		CreateTime:  timestamppb.New(p.CreateTime),
		UpdateTime:  timestamppb.New(p.UpdateTime),
	}

	switch p.State {
	case store.ProgramActive:
		pb.State = workflowspb.Workflow_ACTIVE
	default:
		pb.State = workflowspb.Workflow_STATE_UNSPECIFIED
	}

	if p.Source != "" {
		pb.SourceCode = &workflowspb.Workflow_SourceContents{
			SourceContents: p.Source,
		}
	}

	return pb
}

func runToProto(run *store.Run) *executionspb.Execution {
	pb := &executionspb.Execution{
		Name:               toWireName(run.Name),
		StartTime:          timestamppb.New(run.StartTime),
		Argument:           run.Stdin,
		Result:             run.Stdout,
		WorkflowRevisionId: run.ProgramRevisionID,
	}

	switch run.State {
	case store.RunActive:
		pb.State = executionspb.Execution_ACTIVE
	case store.RunSucceeded:
		pb.State = executionspb.Execution_SUCCEEDED
	case store.RunFailed:
		pb.State = executionspb.Execution_FAILED
	case store.RunCancelled:
		pb.State = executionspb.Execution_CANCELLED
	default:
		pb.State = executionspb.Execution_STATE_UNSPECIFIED
	}

	if run.Error != nil {
		pb.Error = &executionspb.Execution_Error{
			Payload: run.Error.Payload,
			Context: run.Error.Stage,
		}
	}

	if !run.EndTime.IsZero() {
		pb.EndTime = timestamppb.New(run.EndTime)
	}

	return pb
}

// --- Operations Service (for official client LRO support) ---

// GetOperation always reports NotFound: every operation this server hands
// out is already done.
func (s *Server) GetOperation(ctx context.Context, req *longrunningpb.GetOperationRequest) (*longrunningpb.Operation, error) {
	return nil, status.Errorf(codes.NotFound, "operation %q not found", req.GetName())
}

// doneOperation wraps a proto message in an already-completed LRO Operation.
func doneOperation(name string, msg proto.Message) (*longrunningpb.Operation, error) {
	any, err := anypb.New(msg)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to marshal operation result: %v", err)
	}
	return &longrunningpb.Operation{
		Name: fmt.Sprintf("projects/-/locations/-/operations/%s", name),
		Done: true,
		Result: &longrunningpb.Operation_Response{
			Response: any,
		},
	}, nil
}
