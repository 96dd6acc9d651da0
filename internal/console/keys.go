package console

import (
	"bufio"
	"context"
	"errors"
	"io"
	"unicode"
)

// ReadKeys reads runes from r until it fails or ctx is done and hands every printable rune to
// send. send must not block.
func ReadKeys(ctx context.Context, r io.Reader, send func(rune)) error {
	br := bufio.NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		key, _, err := br.ReadRune()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if unicode.IsPrint(key) {
			send(key)
		}
	}
}
