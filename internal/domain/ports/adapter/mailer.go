package adapter

import "context"

// Mailer is the external notification collaborator. Delivery mechanics are
// out of scope; failures here must never fail a capture.
type Mailer interface {
	SendActivationEmail(ctx context.Context, email, name, token, product, returnURL string) error
	SendWelcomeEmail(ctx context.Context, email, name, product, returnURL string) error
}
