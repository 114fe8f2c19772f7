package utils_test

import (
	"testing"

	"github.com/jrsteele09/go-auth-client/internal/utils"
	"github.com/stretchr/testify/require"
)

func TestPtr_CopiesValue(t *testing.T) {
	s := "token"
	p := utils.Ptr(s)
	s = "changed"

	require.Equal(t, "token", *p)
}
