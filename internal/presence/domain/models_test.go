package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		minutes int64
		want    string
	}{
		{0, "00:00:00"},
		{1, "00:01:00"},
		{59, "00:59:00"},
		{60, "01:00:00"},
		{61, "01:01:00"},
		{150, "02:30:00"},
		{1440, "24:00:00"},
		{-5, "00:00:00"},
	}

	for _, tc := range cases {
		require.Equal(t, tc.want, FormatDuration(tc.minutes), "minutes=%d", tc.minutes)
	}
}
