package mail

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDomainOf(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{`"Netflix" <info@mailer.netflix.com>`, "mailer.netflix.com"},
		{"billing@spotify.com", "spotify.com"},
		{"Adobe <no-reply@Adobe.COM>", "adobe.com"},
		{"no-address-here", ""},
		{"", ""},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, DomainOf(tc.in), "input %q", tc.in)
	}
}

func TestStripHTML(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			"markup around an amount",
			`<html><body><p>Your payment of <b>$9.99</b> was processed.</p></body></html>`,
			"Your payment of $9.99 was processed.",
		},
		{
			"script and style are dropped",
			`<style>.x{color:red}</style><script>alert(1)</script><div>Receipt</div>`,
			"Receipt",
		},
		{
			"plain text passes through",
			"Already   plain\n\ntext",
			"Already plain text",
		},
		{
			"nested blocks become spaces",
			"<table><tr><td>Total</td><td>$15.99</td></tr></table>",
			"Total $15.99",
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, StripHTML(tc.in))
		})
	}
}
