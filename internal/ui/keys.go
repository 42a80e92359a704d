package ui

import (
	"github.com/charmbracelet/bubbles/key"

	"taskmage/internal/config"
)

type keyMap struct {
	Quit     key.Binding
	Next     key.Binding
	Prev     key.Binding
	Add      key.Binding
	Complete key.Binding
	Time     key.Binding
	Filter   key.Binding
	AddTime  key.Binding
	SubTime  key.Binding
	Confirm  key.Binding
	Cancel   key.Binding
}

func newKeyMap(k config.Keymap) keyMap {
	return keyMap{
		Quit:     key.NewBinding(key.WithKeys(k.Quit), key.WithHelp(k.Quit, "quit")),
		Next:     key.NewBinding(key.WithKeys(k.Next, "down"), key.WithHelp(k.Next, "next")),
		Prev:     key.NewBinding(key.WithKeys(k.Prev, "up"), key.WithHelp(k.Prev, "prev")),
		Add:      key.NewBinding(key.WithKeys(k.Add), key.WithHelp(k.Add, "add")),
		Complete: key.NewBinding(key.WithKeys(k.Complete), key.WithHelp(k.Complete, "done")),
		Time:     key.NewBinding(key.WithKeys(k.Time), key.WithHelp(k.Time, "time")),
		Filter:   key.NewBinding(key.WithKeys(k.Filter), key.WithHelp(k.Filter, "filter")),
		AddTime:  key.NewBinding(key.WithKeys(k.AddTime), key.WithHelp(k.AddTime, "add time")),
		SubTime:  key.NewBinding(key.WithKeys(k.SubTime), key.WithHelp(k.SubTime, "subtract time")),
		Confirm:  key.NewBinding(key.WithKeys(k.Confirm), key.WithHelp(k.Confirm, "confirm")),
		Cancel:   key.NewBinding(key.WithKeys(k.Cancel), key.WithHelp(k.Cancel, "cancel")),
	}
}

// bindings adapts a fixed set of keys to help.KeyMap.
type bindings []key.Binding

func (b bindings) ShortHelp() []key.Binding { return b }

func (b bindings) FullHelp() [][]key.Binding { return [][]key.Binding{b} }

func (k keyMap) helpFor(m mode) bindings {
	switch m {
	case modePrompt:
		return bindings{k.Confirm, k.Cancel}
	case modeTiming:
		// Time stops the running timer in this mode.
		stop := key.NewBinding(key.WithKeys(k.Time.Keys()...), key.WithHelp(k.Time.Help().Key, "stop"))
		return bindings{stop, k.AddTime, k.SubTime}
	default:
		return bindings{k.Next, k.Prev, k.Add, k.Complete, k.Time, k.Filter, k.Quit}
	}
}
