// Package ui implements an interactive terminal console using bubbletea's Elm architecture.
//
// The console has two views:
//  1. [ConsoleView] : type a request ("brahms violin sonata", "playlist Evening", "skip") and read the reply
//  2. [HistoryView] : browse earlier requests and run one again
//
// Every line goes to a [Dispatcher] in a tea.Cmd, so the update loop never blocks on the network;
// a spinner runs while a request is in flight and only one request runs at a time.
// Replies are colored by the palette: green for commands that went through, orange for soft warnings,
// red for anything the user needs to act on.
package ui
