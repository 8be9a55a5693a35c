package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	apperrors "wikimind/internal/common/errors"
	"wikimind/internal/models"
)

type asker interface {
	AskCurrent(ctx context.Context, question string) (*models.Answer, error)
}

// answerLoop answers one question per input line until EOF. Failures are reported and the loop
// continues.
func answerLoop(ctx context.Context, a asker, in io.Reader, out io.Writer, onAnswer func(*models.Answer)) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		q := strings.TrimSpace(scanner.Text())
		if q == "" {
			continue
		}

		answer, err := a.AskCurrent(ctx, q)
		if err != nil {
			fmt.Fprintln(out, apperrors.Describe(err))
			if ctx.Err() != nil {
				return nil
			}
			continue
		}
		printAnswer(out, answer)
		if onAnswer != nil {
			onAnswer(answer)
		}
	}
}

func printAnswer(out io.Writer, a *models.Answer) {
	if a.Text == "" {
		fmt.Fprintln(out, "No answer found in this article.")
		return
	}
	fmt.Fprintf(out, "%s  (confidence %.2f)\n", a.Text, a.Confidence)
}
