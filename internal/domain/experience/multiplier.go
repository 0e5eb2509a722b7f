package experience

import (
	"context"

	"github.com/alem-hub/levelup/internal/domain/shared"
)

// Resolver turns a raw amount into the amount to credit.
type Resolver interface {
	Resolve(ctx context.Context, userID shared.UserID, amount int) (int, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, userID shared.UserID, amount int) (int, error)

func (f ResolverFunc) Resolve(ctx context.Context, userID shared.UserID, amount int) (int, error) {
	return f(ctx, userID, amount)
}

// Multiplier scales additions for users it qualifies.
type Multiplier interface {
	Name() string
	Qualifies(ctx context.Context, userID shared.UserID) (bool, error)
	Factor() int
}

// Stack multiplies the amount by the factor of every qualifying
// multiplier. An empty stack leaves the amount unchanged.
type Stack []Multiplier

func (s Stack) Resolve(ctx context.Context, userID shared.UserID, amount int) (int, error) {
	for _, m := range s {
		ok, err := m.Qualifies(ctx, userID)
		if err != nil {
			return 0, shared.WrapError("experience", "Multiply", shared.ErrInvalidState, "multiplier "+m.Name()+" failed", err)
		}
		if ok {
			amount *= m.Factor()
		}
	}
	return amount, nil
}

// Static is a multiplier with a fixed factor and an optional predicate.
// A nil predicate qualifies every user.
type Static struct {
	Label     string
	Value     int
	Predicate func(ctx context.Context, userID shared.UserID) bool
}

func (m Static) Name() string { return m.Label }
func (m Static) Factor() int  { return m.Value }

func (m Static) Qualifies(ctx context.Context, userID shared.UserID) (bool, error) {
	if m.Predicate == nil {
		return true, nil
	}
	return m.Predicate(ctx, userID), nil
}

// ForUsers qualifies only the listed users.
func ForUsers(label string, factor int, users ...shared.UserID) Static {
	set := make(map[shared.UserID]struct{}, len(users))
	for _, u := range users {
		set[u] = struct{}{}
	}
	return Static{
		Label: label,
		Value: factor,
		Predicate: func(_ context.Context, userID shared.UserID) bool {
			_, ok := set[userID]
			return ok
		},
	}
}
