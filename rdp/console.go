package rdp

import "context"

// Console wraps the legacy Console domain, enabled only for backward
// compatibility with runtimes that still emit Console.messageAdded.
type Console struct {
	c Client
}

func NewConsole(c Client) *Console { return &Console{c: c} }

func (c *Console) Enable(ctx context.Context) error {
	return c.c.Call(ctx, "Console.enable", struct{}{}, nil)
}

// TimeTravel wraps the optional reverse-debugging domain. Runtimes that
// don't support it simply fail every call here; callers treat that as
// "reverse debugging unavailable" rather than a fatal error.
type TimeTravel struct {
	c Client
}

func NewTimeTravel(c Client) *TimeTravel { return &TimeTravel{c: c} }

func (t *TimeTravel) StepBack(ctx context.Context) error {
	return t.c.Call(ctx, "TimeTravel.stepBack", struct{}{}, nil)
}

func (t *TimeTravel) Reverse(ctx context.Context) error {
	return t.c.Call(ctx, "TimeTravel.reverse", struct{}{}, nil)
}
