// Package pairing handles the HomeKit setup code and its QR rendering.
package pairing

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/brutella/hap"
	qrcode "github.com/skip2/go-qrcode"
)

const uriScheme = "X-HM://"

var codeRe = regexp.MustCompile(`^\d{3}-\d{2}-\d{3}$`)

// Code is a setup code in the DDD-DD-DDD form shown to users.
type Code string

func ParseCode(s string) (Code, error) {
	s = strings.TrimSpace(s)
	if !codeRe.MatchString(s) {
		return "", fmt.Errorf("invalid pairing code %q (want DDD-DD-DDD)", s)
	}
	c := Code(s)
	// The accessory server refuses these at listen time.
	if hap.InvalidPins[c.Pin()] {
		return "", fmt.Errorf("insecure pairing code %q", s)
	}
	return c, nil
}

func (c Code) String() string { return string(c) }

// Pin is the code without dashes, the form the accessory server expects.
func (c Code) Pin() string {
	return strings.ReplaceAll(string(c), "-", "")
}

// URI is the payload encoded into the pairing QR code.
func (c Code) URI() string {
	return uriScheme + c.Pin()
}

// WriteQR renders c.URI() as a size×size PNG at path.
func WriteQR(c Code, path string, size int) error {
	if err := qrcode.WriteFile(c.URI(), qrcode.Medium, size, path); err != nil {
		return fmt.Errorf("write qr code %s: %w", path, err)
	}
	return nil
}

// Terminal renders c.URI() for a text console, two modules per character
// row using half blocks.
func Terminal(c Code) (string, error) {
	q, err := qrcode.New(c.URI(), qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("encode qr code: %w", err)
	}
	bits := q.Bitmap()

	var b strings.Builder
	for y := 0; y < len(bits); y += 2 {
		for x := range bits[y] {
			top := bits[y][x]
			bottom := y+1 < len(bits) && bits[y+1][x]
			switch {
			case top && bottom:
				b.WriteRune('█')
			case top:
				b.WriteRune('▀')
			case bottom:
				b.WriteRune('▄')
			default:
				b.WriteRune(' ')
			}
		}
		b.WriteByte('\n')
	}
	return b.String(), nil
}
