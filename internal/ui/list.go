package ui

import (
	"github.com/charmbracelet/bubbles/list"
)

var _ list.Item = exchangeItem{}

// exchange is one command and the reply it got.
type exchange struct {
	command string
	reply   string
}

// exchangeItem wraps [exchange] to implement [list.Item].
type exchangeItem struct {
	exchange exchange
}

func (i exchangeItem) FilterValue() string { return i.exchange.command }
func (i exchangeItem) Title() string       { return i.exchange.command }
func (i exchangeItem) Description() string { return firstLine(i.exchange.reply) }

// historyItems lists exchanges newest first.
func historyItems(history []exchange) []list.Item {
	items := make([]list.Item, 0, len(history))
	for i := len(history) - 1; i >= 0; i-- {
		items = append(items, exchangeItem{exchange: history[i]})
	}
	return items
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
