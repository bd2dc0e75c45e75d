// Package protocol defines the messages exchanged on the broadcast channel.
//
// Every message travels in a Message envelope whose Data holds one typed
// payload. Decode switches over the known types; anything else decodes to
// ErrUnknownMessageType so newer peers can add types without breaking older
// ones.
package protocol

import (
	"github.com/lox/deathmoves/internal/assets"
	"github.com/lox/deathmoves/internal/outcome"
	"github.com/lox/deathmoves/internal/presentation"
)

// MessageType identifies the type of message
type MessageType string

const (
	TypeShowUI            MessageType = "SHOW_UI"
	TypeShowSpectatorUI   MessageType = "SHOW_SPECTATOR_UI"
	TypeRemoveSpectatorUI MessageType = "REMOVE_SPECTATOR_UI"
	TypeShowAnnouncement  MessageType = "SHOW_ANNOUNCEMENT"
	TypePlayMedia         MessageType = "PLAY_MEDIA"
	TypePlaySound         MessageType = "PLAY_SOUND"
	TypeShowBorder        MessageType = "SHOW_BORDER"
	TypeRemoveBorder      MessageType = "REMOVE_BORDER"
	TypeUpdateCountdown   MessageType = "UPDATE_COUNTDOWN"
	TypeHideUnselected    MessageType = "HIDE_UNSELECTED"

	// Sent by the hub only.
	TypeRoster MessageType = "ROSTER"
)

// String returns the string representation of the message type
func (mt MessageType) String() string {
	return string(mt)
}

// OpensFlow reports whether mt starts a flow on its receivers. Only game
// masters may send these.
func (mt MessageType) OpensFlow() bool {
	return mt == TypeShowUI || mt == TypeShowSpectatorUI
}

// Payload is implemented by every message body.
type Payload interface {
	MessageType() MessageType
}

// ShowUI opens the interactive overlay on the target's client.
type ShowUI struct {
	TargetUserID string                       `json:"targetUserId"`
	Probs        *outcome.ProbabilitySnapshot `json:"probs,omitempty"`
}

// ShowSpectatorUI opens the read-only overlay on every other client.
type ShowSpectatorUI struct {
	TargetUserID string                       `json:"targetUserId"`
	Probs        *outcome.ProbabilitySnapshot `json:"probs,omitempty"`
}

type RemoveSpectatorUI struct{}

type ShowAnnouncement struct {
	Text   string         `json:"text"`
	Branch outcome.Branch `json:"branch,omitempty"`
}

type PlayMedia struct {
	MediaKey assets.Media `json:"mediaKey"`
}

type PlaySound struct {
	SoundKey assets.Sound `json:"soundKey"`
}

type ShowBorder struct {
	BorderType presentation.Border `json:"borderType"`
}

type RemoveBorder struct{}

type UpdateCountdown struct {
	ButtonID string `json:"buttonId"`
	Number   int    `json:"number"`
}

type HideUnselected struct {
	ButtonID string `json:"buttonId"`
}

// Participant is one connected peer as seen by the hub.
type Participant struct {
	UserID     string `json:"userId"`
	Name       string `json:"name"`
	Privileged bool   `json:"privileged"`
}

// Roster lists everyone currently connected.
type Roster struct {
	Participants []Participant `json:"participants"`
}

func (ShowUI) MessageType() MessageType            { return TypeShowUI }
func (ShowSpectatorUI) MessageType() MessageType   { return TypeShowSpectatorUI }
func (RemoveSpectatorUI) MessageType() MessageType { return TypeRemoveSpectatorUI }
func (ShowAnnouncement) MessageType() MessageType  { return TypeShowAnnouncement }
func (PlayMedia) MessageType() MessageType         { return TypePlayMedia }
func (PlaySound) MessageType() MessageType         { return TypePlaySound }
func (ShowBorder) MessageType() MessageType        { return TypeShowBorder }
func (RemoveBorder) MessageType() MessageType      { return TypeRemoveBorder }
func (UpdateCountdown) MessageType() MessageType   { return TypeUpdateCountdown }
func (HideUnselected) MessageType() MessageType    { return TypeHideUnselected }
func (Roster) MessageType() MessageType            { return TypeRoster }
