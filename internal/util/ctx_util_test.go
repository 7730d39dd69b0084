package util

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemberIDFromContext(t *testing.T) {
	_, ok := MemberIDFromContext(context.Background())
	require.False(t, ok)

	id, ok := MemberIDFromContext(WithMemberID(context.Background(), 42))
	require.True(t, ok)
	require.Equal(t, int64(42), id)

	_, ok = MemberIDFromContext(WithMemberID(context.Background(), 0))
	require.False(t, ok)
}

func TestRequestIDFromContext(t *testing.T) {
	require.Equal(t, "unknown", RequestIDFromContext(context.Background()))
	require.Equal(t, "abc", RequestIDFromContext(WithRequestID(context.Background(), "abc")))
}
