package caseflow

// Step names of the reference claim workflow.
const (
	NodeValidateRequest      = "ValidateRequest"
	NodeGatherClaimInfo      = "GatherClaimInfo"
	NodeIdentifyAndDecide    = "IdentifyAndDecide"
	NodeCancelRequest        = "CancelRequest"
	NodeHoldRequest          = "HoldRequest"
	NodeApplyTempSuppression = "ApplyTempSuppression"
	NodeFulfillAndDetect     = "FulfillAndDetect"
)

// Decision keys and bag entries owned by the claim steps.
const (
	DecisionValidate       = "validate"
	DecisionProcess        = "processDecision"
	DecisionHoldAction     = "holdAction"
	DecisionProceedFulfill = "proceedFulfill"

	BagClaimDetails = "claimDetails"
)

// Control actions accepted while an instance is on hold.
const (
	ControlResume = "resume"
	ControlAbort  = "abort"
)

const ClaimWorkflowName = "ClaimWorkflow"

// ClaimWorkflow builds the reference claim process graph. Entry step is
// ValidateRequest; CancelRequest and FulfillAndDetect are terminal.
func ClaimWorkflow() *Graph {
	b := NewBuilder(ClaimWorkflowName, NodeValidateRequest)

	b.AddStep(NodeValidateRequest, validateRequest)
	b.AddStep(NodeGatherClaimInfo, gatherClaimInfo)
	b.AddStep(NodeIdentifyAndDecide, identifyAndDecide)
	b.AddStep(NodeCancelRequest, cancelRequest)
	b.AddStep(NodeHoldRequest, holdRequest)
	b.AddStep(NodeApplyTempSuppression, applyTempSuppression)
	b.AddStep(NodeFulfillAndDetect, fulfillAndDetect)

	b.AddRoute(NodeValidateRequest, routeValidateRequest, NodeGatherClaimInfo, NodeCancelRequest)
	b.AddRoute(NodeGatherClaimInfo, routeGatherClaimInfo, NodeIdentifyAndDecide)
	b.AddRoute(NodeIdentifyAndDecide, routeIdentifyAndDecide, NodeCancelRequest, NodeHoldRequest, NodeApplyTempSuppression)
	b.AddRoute(NodeHoldRequest, routeHoldRequest, NodeApplyTempSuppression, NodeCancelRequest)
	b.AddRoute(NodeApplyTempSuppression, routeApplyTempSuppression, NodeFulfillAndDetect, NodeCancelRequest)

	g, err := b.Build()
	if err != nil {
		// The claim graph is fixed at compile time so this is unreachable.
		panic(err)
	}

	return g
}

func validateRequest(s *ProcessState) {
	s.Status = StatusInProgress
	s.LastNode = NodeValidateRequest

	if _, ok := s.Decision(DecisionValidate); ok {
		return
	}

	in, ok := s.ConsumeInput()
	if !ok {
		s.AwaitInput("Validate request? (yes/no)")
		return
	}

	switch ans := normalize(in); ans {
	case "yes", "no":
		s.SetDecision(DecisionValidate, ans)
	default:
		s.AwaitInput("Invalid input. Validate request? (yes/no)")
	}
}

func routeValidateRequest(s *ProcessState) Next {
	switch d, _ := s.Decision(DecisionValidate); d {
	case "yes":
		return NextStep(NodeGatherClaimInfo)
	case "no":
		return NextStep(NodeCancelRequest)
	default:
		return Suspend()
	}
}

func gatherClaimInfo(s *ProcessState) {
	s.LastNode = NodeGatherClaimInfo

	if s.Bag[BagClaimDetails] != nil {
		return
	}

	in, ok := s.ConsumeInput()
	if !ok {
		s.AwaitInput("Provide claim details (free text).")
		return
	}

	if s.Bag == nil {
		s.Bag = make(map[string]any)
	}
	s.Bag[BagClaimDetails] = in
}

func routeGatherClaimInfo(s *ProcessState) Next {
	if s.Bag[BagClaimDetails] == nil {
		return Suspend()
	}

	return NextStep(NodeIdentifyAndDecide)
}

func identifyAndDecide(s *ProcessState) {
	s.LastNode = NodeIdentifyAndDecide

	if _, ok := s.Decision(DecisionProcess); ok {
		return
	}

	in, ok := s.ConsumeInput()
	if !ok {
		s.AwaitInput("Decision? Enter: cancel / hold / suppress")
		return
	}

	switch d := normalize(in); d {
	case "cancel", "hold", "suppress":
		s.SetDecision(DecisionProcess, d)
	default:
		s.AwaitInput("Decision? Enter: cancel / hold / suppress")
	}
}

func routeIdentifyAndDecide(s *ProcessState) Next {
	switch d, _ := s.Decision(DecisionProcess); d {
	case "cancel":
		return NextStep(NodeCancelRequest)
	case "hold":
		return NextStep(NodeHoldRequest)
	case "suppress":
		return NextStep(NodeApplyTempSuppression)
	default:
		return Suspend()
	}
}

func holdRequest(s *ProcessState) {
	s.LastNode = NodeHoldRequest

	if _, ok := s.Decision(DecisionHoldAction); ok {
		return
	}

	action, ok := s.ConsumeControl()
	if !ok {
		s.AwaitControl("Workflow on hold. Command: resume / abort")
		return
	}

	switch a := normalize(action); a {
	case ControlResume, ControlAbort:
		s.SetDecision(DecisionHoldAction, a)
	default:
		s.AwaitControl("Workflow on hold. Command: resume / abort")
	}
}

func routeHoldRequest(s *ProcessState) Next {
	switch a, _ := s.Decision(DecisionHoldAction); a {
	case ControlResume:
		return NextStep(NodeApplyTempSuppression)
	case ControlAbort:
		return NextStep(NodeCancelRequest)
	default:
		return Suspend()
	}
}

func applyTempSuppression(s *ProcessState) {
	s.LastNode = NodeApplyTempSuppression

	if _, ok := s.Decision(DecisionProceedFulfill); ok {
		return
	}

	in, ok := s.ConsumeInput()
	if !ok {
		s.AwaitInput("Proceed to fulfill? (yes/no)")
		return
	}

	switch ans := normalize(in); ans {
	case "yes", "no":
		s.SetDecision(DecisionProceedFulfill, ans)
	default:
		s.AwaitInput("Proceed to fulfill? (yes/no)")
	}
}

func routeApplyTempSuppression(s *ProcessState) Next {
	switch d, _ := s.Decision(DecisionProceedFulfill); d {
	case "yes":
		return NextStep(NodeFulfillAndDetect)
	case "no":
		return NextStep(NodeCancelRequest)
	default:
		return Suspend()
	}
}

func cancelRequest(s *ProcessState) {
	s.LastNode = NodeCancelRequest
	s.Status = StatusAborted
	s.Result = "Workflow aborted."
}

func fulfillAndDetect(s *ProcessState) {
	s.LastNode = NodeFulfillAndDetect
	s.Status = StatusCompleted
	s.Result = "Fulfilled and detection complete."
}
