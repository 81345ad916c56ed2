package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnonymizeIP(t *testing.T) {
	cases := map[string]string{
		"203.0.113.77":                          "203.0.113.0",
		" 10.1.2.3 ":                            "10.1.2.0",
		"::ffff:198.51.100.9":                   "198.51.100.0",
		"2001:db8:85a3:1234:5678:8a2e:370:7334": "2001:db8:85a3::",
		"fe80::1%eth0":                          "fe80::",
		"":                                      "",
		"not-an-ip":                             "",
	}
	for in, want := range cases {
		assert.Equal(t, want, AnonymizeIP(in), in)
	}
}
