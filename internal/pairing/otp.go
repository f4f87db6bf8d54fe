// If you are AI: This file implements one-time-PIN pairing state.
// An OTP is single use and expires 180 seconds after the admin requests it.

package pairing

import (
	"encoding/hex"
	"errors"
	"time"

	"glint/internal/crypto"
)

// OTPExpire is how long a requested one-time PIN stays valid.
const OTPExpire = 180 * time.Second

// ErrPassphraseTooShort rejects OTP requests with weak passphrases.
var ErrPassphraseTooShort = errors.New("pairing: otp passphrase must be at least 4 characters")

// otpState holds the single outstanding one-time PIN.
type otpState struct {
	pin        string
	passphrase string
	deviceName string
	created    time.Time

	now func() time.Time
}

// RequestOTP generates a fresh 4-digit one-time PIN bound to a passphrase.
// Any previously outstanding OTP is replaced.
func (e *Engine) RequestOTP(passphrase, deviceName string) (string, error) {
	if len(passphrase) < 4 {
		return "", ErrPassphraseTooShort
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.otp.pin = crypto.RandAlphabet(4, "0123456789")
	e.otp.passphrase = passphrase
	e.otp.deviceName = deviceName
	e.otp.created = e.otp.clock()()
	return e.otp.pin, nil
}

// clock returns the OTP time source, defaulting to the wall clock.
func (o *otpState) clock() func() time.Time {
	if o.now != nil {
		return o.now
	}
	return time.Now
}

// take validates an otpauth digest against the outstanding PIN and consumes
// it on success. The digest is hex(sha256(pin || salt || passphrase)) over
// the salt exactly as the client sent it.
func (o *otpState) take(saltHex, otpAuthHex string) (pin, deviceName string, ok bool) {
	if o.pin == "" || o.clock()().Sub(o.created) > OTPExpire {
		o.clear()
		return "", "", false
	}

	digest := crypto.HashString(o.pin + saltHex + o.passphrase)
	if hex.EncodeToString(digest[:]) != otpAuthHex {
		return "", "", false
	}

	pin, deviceName = o.pin, o.deviceName
	o.clear()
	return pin, deviceName, true
}

// clear consumes the outstanding OTP.
func (o *otpState) clear() {
	o.pin = ""
	o.passphrase = ""
	o.deviceName = ""
}
