package asm

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// parseRegisterLiteral parses a bare register index used in a directive
// context (.name:), where by-reference prefixing does not apply.
func parseRegisterLiteral(tok string) (int64, error) {
	return strconv.ParseInt(tok, 10, 32)
}

// resolveRegisterOperand turns an operand token into a register index,
// honoring a by-reference "@" prefix and the unit's .name: aliases.
func resolveRegisterOperand(tok string, aliases map[string]int64) (byRef bool, index int32, err error) {
	if strings.HasPrefix(tok, "@") {
		byRef = true
		tok = tok[1:]
	}
	if idx, ok := aliases[tok]; ok {
		return byRef, int32(idx), nil
	}
	n, err := strconv.ParseInt(tok, 10, 32)
	if err != nil {
		return false, 0, errors.Errorf("not a register operand: %q", tok)
	}
	return byRef, int32(n), nil
}

// parseIntegerLiteral parses a bare (non-register) integer literal, as
// used by ISTORE's literal operand or FRAME's arg/local counts.
func parseIntegerLiteral(tok string) (int32, error) {
	n, err := strconv.ParseInt(tok, 10, 32)
	if err != nil {
		return 0, errors.Errorf("not an integer literal: %q", tok)
	}
	return int32(n), nil
}

func parseFloatLiteral(tok string) (float32, error) {
	f, err := strconv.ParseFloat(tok, 32)
	if err != nil {
		return 0, errors.Errorf("not a float literal: %q", tok)
	}
	return float32(f), nil
}

// parseByteLiteral accepts both decimal ("7") and 0x-prefixed hex ("0x07")
// forms, matching how RESS selectors and BSTORE literals are written.
func parseByteLiteral(tok string) (byte, error) {
	n, err := strconv.ParseUint(tok, 0, 8)
	if err != nil {
		return 0, errors.Errorf("not a byte literal: %q", tok)
	}
	return byte(n), nil
}

// parseStringLiteral strips the surrounding double quotes a STRSTORE/name
// operand is written with, interpreting backslash escapes for quote and
// backslash itself.
func parseStringLiteral(tok string) (string, error) {
	if len(tok) < 2 || tok[0] != '"' || tok[len(tok)-1] != '"' {
		return "", errors.Errorf("not a string literal: %q", tok)
	}
	body := tok[1 : len(tok)-1]
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		if body[i] == '\\' && i+1 < len(body) {
			i++
			switch body[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(body[i])
			}
			continue
		}
		b.WriteByte(body[i])
	}
	return b.String(), nil
}

var ressNames = map[string]byte{
	"global": 0,
	"local":  1,
	"static": 2,
	"temp":   3,
}

func parseRessSelector(tok string) (byte, error) {
	if n, ok := ressNames[tok]; ok {
		return n, nil
	}
	return parseByteLiteral(tok)
}
