// Package tui implements interactive order confirmation in the terminal.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"

	"github.com/pairbot/pairbot/internal/domain"
)

var (
	buyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}).
			Bold(true)

	sellStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#BF4343", Dark: "#F57373"}).
			Bold(true)

	detailStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#383838", Dark: "#D9DCCF"}).
			PaddingLeft(2)
)

type choice int

const (
	choiceExecute choice = iota
	choiceSkip
	choiceAskAgain
)

// Confirmer prompts the operator before each order goes out.
type Confirmer struct {
	pair domain.Pair
}

func NewConfirmer(pair domain.Pair) *Confirmer {
	return &Confirmer{pair: pair}
}

// Confirm renders the proposal and asks until the operator picks execute or
// skip.
func (c *Confirmer) Confirm(ctx context.Context, decision domain.SideDecision) (bool, error) {
	fmt.Println(render(c.pair, decision))

	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		default:
		}

		var picked choice
		err := huh.NewForm(
			huh.NewGroup(
				huh.NewSelect[choice]().
					Title(fmt.Sprintf("Place this %s order?", decision.Side)).
					Options(
						huh.NewOption("Execute", choiceExecute),
						huh.NewOption("Skip", choiceSkip),
						huh.NewOption("Ask again", choiceAskAgain),
					).
					Value(&picked),
			),
		).Run()
		if err != nil {
			return false, errors.Wrap(err, "confirmation prompt")
		}

		switch picked {
		case choiceExecute:
			return true, nil
		case choiceSkip:
			return false, nil
		}
	}
}

func render(pair domain.Pair, decision domain.SideDecision) string {
	header := buyStyle.Render(fmt.Sprintf("BUY %s", pair))
	if decision.Side == domain.SideSell {
		header = sellStyle.Render(fmt.Sprintf("SELL %s", pair))
	}

	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n")
	b.WriteString(detailStyle.Render(fmt.Sprintf("amount    %s %s", decision.Amount, pair.Base)))
	b.WriteString("\n")
	b.WriteString(detailStyle.Render(fmt.Sprintf("price     %s %s", decision.Price, pair.Quote)))
	b.WriteString("\n")
	b.WriteString(detailStyle.Render(fmt.Sprintf("portfolio %s -> %s %s",
		decision.CurrentValue, decision.ProjectedValue, pair.Quote)))
	return b.String()
}
