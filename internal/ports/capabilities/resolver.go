package capabilities

import "context"

// Resolver responde si un usuario tiene habilitada una feature de su plan.
type Resolver interface {
	Has(ctx context.Context, userID, feature string) (bool, error)
}
