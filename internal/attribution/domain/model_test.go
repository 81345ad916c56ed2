package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeIgnoresClientExpiry(t *testing.T) {
	var a ClientAttribution
	raw := `{"kolId":7,"affiliateId":"1642157712323457024","productId":null,
		"timestamp":"2025-03-01T10:00:00Z","expiresAt":"2099-01-01T00:00:00Z"}`
	require.NoError(t, json.Unmarshal([]byte(raw), &a))
	a.Normalize()

	assert.Equal(t, ID(7), a.KolID)
	assert.Equal(t, ID(1642157712323457024), a.AffiliateID)
	assert.Equal(t, TypeGeneral, a.AttributionType)
	assert.Equal(t, time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC), a.ExpiresAt)
	assert.True(t, a.Valid())
}

func TestIDMarshalsAsString(t *testing.T) {
	out, err := json.Marshal(struct {
		ID ID `json:"id"`
	}{ID: 42})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"42"}`, string(out))

	var id ID
	assert.ErrorIs(t, json.Unmarshal([]byte(`"abc"`), &id), ErrMalformed)
}

func TestExpired(t *testing.T) {
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	a := New(Seed{KolID: 1, AffiliateID: 2}, now)
	assert.False(t, a.Expired(now.Add(Lifetime)))
	assert.True(t, a.Expired(now.Add(Lifetime+time.Nanosecond)))
	assert.Zero(t, a.Remaining(now.Add(48*time.Hour)))
}

func TestClickIDRoundTripAndAnchor(t *testing.T) {
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	a := New(Seed{KolID: 1, AffiliateID: 2, ClickID: 1642157712323457099}, now)
	require.NotNil(t, a.ClickIDValue())

	out, err := json.Marshal(a)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"clickId":"1642157712323457099"`)

	var back ClientAttribution
	require.NoError(t, json.Unmarshal(out, &back))
	back.Normalize()
	assert.Equal(t, int64(1642157712323457099), *back.ClickIDValue())

	clickedAt := now.Add(-30 * time.Hour)
	back.Anchor(clickedAt)
	assert.True(t, back.Expired(now))

	noClick := New(Seed{KolID: 1, AffiliateID: 2}, now)
	assert.Nil(t, noClick.ClickIDValue())
	out, err = json.Marshal(noClick)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "clickId")
}
