package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the console (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgReply MsgKind = iota
)

// replyMsg is the constructor for [MsgReply]
func replyMsg(command, reply string) Msg {
	return Msg{kind: MsgReply, data: exchange{command: command, reply: reply}}
}
