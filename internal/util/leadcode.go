package util

import (
	"crypto/rand"
	"fmt"
)

const codeLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// NewLeadCode generates a human-readable lead tracking code:
// "#" + 3 uppercase letters + 3 digits, e.g. #LON001.
// Uniqueness is enforced by the DB constraint; callers retry on collision.
func NewLeadCode() string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}

	out := make([]byte, 7)
	out[0] = '#'
	for i := 0; i < 3; i++ {
		out[1+i] = codeLetters[int(buf[i])%len(codeLetters)]
	}
	for i := 3; i < 6; i++ {
		out[1+i] = '0' + buf[i]%10
	}
	return string(out)
}

// NewSandboxPhone returns a fake but well-formed E.164 number for test leads,
// in the reserved UK drama range so it can never collide with a real sender.
func NewSandboxPhone() string {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return fmt.Sprintf("+4477009%02d%02d%02d", buf[0]%100, buf[1]%100, buf[2]%100)
}
