package documents

import (
	"docseal/signature-backend/pkg/workflows"
)

// WorkflowService hands out verification runs. The machine is immutable, so
// one service is shared across requests.
type WorkflowService struct {
	sm *workflows.StateMachine
}

func NewWorkflowService() *WorkflowService {
	return &WorkflowService{sm: workflows.NewVerificationStateMachine()}
}

func (s *WorkflowService) Begin() *workflows.Run {
	return s.sm.Start()
}
