package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDefaults(t *testing.T) {
	offset, limit, err := Pagination{}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, 0, offset)
	assert.Equal(t, DefaultPageSize, limit)

	_, limit, err = Pagination{PageSize: 10_000}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, MaxPageSize, limit)
}

func TestPageTokenRoundTrip(t *testing.T) {
	info := BuildPageInfo(0, 10, 25)
	require.True(t, info.HasMore)

	offset, limit, err := Pagination{PageToken: info.NextPageToken, PageSize: 10}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, 10, offset)
	assert.Equal(t, 10, limit)

	last := BuildPageInfo(20, 10, 25)
	assert.False(t, last.HasMore)
	assert.Empty(t, last.NextPageToken)
}

func TestNormalizeRejectsGarbageToken(t *testing.T) {
	_, _, err := Pagination{PageToken: "%%%"}.Normalize()
	assert.ErrorIs(t, err, ErrInvalidPageToken)
}
