package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCorrelationValues(t *testing.T) {
	ctx := WithRequestID(context.Background(), " req-1 ")
	ctx = WithActor(ctx, "kol", "42")
	ctx = WithKolID(ctx, "42")

	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
	actorType, actorID := ActorFromContext(ctx)
	assert.Equal(t, "kol", actorType)
	assert.Equal(t, "42", actorID)
	assert.Equal(t, "42", KolIDFromContext(ctx))
}

func TestMissingValues(t *testing.T) {
	assert.Empty(t, RequestIDFromContext(context.Background()))
}
