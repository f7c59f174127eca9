package txpipeline

import "context"

// StateHook observes state transitions of a transaction attempt. Hooks run
// synchronously on the attempt goroutine and must be fast.
type StateHook func(prev, next PipelineState)

// ProofProgressHook observes proof generation progress for an attempt.
type ProofProgressHook func(p ProofProgress)

// BeforeSubmitHook runs just before dispatch and may veto it by returning an
// error. The params are mutable; a hook may, for example, adjust gas.
type BeforeSubmitHook func(ctx context.Context, p *SubmitParams) error

// AfterSubmitHook runs after a successful dispatch.
type AfterSubmitHook func(handle TxHandle)
