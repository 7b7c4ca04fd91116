// Package token defines the unit of data exchanged between actors over an
// endpoint. The scheduler never inspects token contents; it only cares that
// an endpoint has one and will move it on Communicate.
package token

// Token is the unit of data exchanged between actors.
type Token struct {
	Seq     uint64
	Payload any
}
