package webhook

// Event is the closed set of gateway notifications the dispatcher understands.
type Event interface {
	ID() string
	Type() string
}

type CheckoutCompleted struct {
	EventID       string
	ExternalID    string
	CustomerEmail string
	AmountTotal   int64
	Currency      string
}

type CheckoutExpired struct {
	EventID    string
	ExternalID string
}

type PaymentSucceeded struct {
	EventID         string
	PaymentIntentID string
}

type PaymentFailed struct {
	EventID         string
	PaymentIntentID string
	FailureMessage  string
}

// Unhandled is a correctly signed event of a type we do not act on, or whose
// object could not be decoded.
type Unhandled struct {
	EventID   string
	EventType string
	Reason    string
}

func (e CheckoutCompleted) ID() string { return e.EventID }
func (e CheckoutExpired) ID() string   { return e.EventID }
func (e PaymentSucceeded) ID() string  { return e.EventID }
func (e PaymentFailed) ID() string     { return e.EventID }
func (e Unhandled) ID() string         { return e.EventID }

func (CheckoutCompleted) Type() string { return "checkout.session.completed" }
func (CheckoutExpired) Type() string   { return "checkout.session.expired" }
func (PaymentSucceeded) Type() string  { return "payment_intent.succeeded" }
func (PaymentFailed) Type() string     { return "payment_intent.payment_failed" }
func (e Unhandled) Type() string       { return e.EventType }
