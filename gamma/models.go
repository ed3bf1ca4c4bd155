// Package gamma is a client for the Gamma generation API: submitting deck
// generations, polling them to completion and downloading the exported
// presentation files.
package gamma

import "fmt"

// Generation statuses reported by the API.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// TextOptions tunes the generated prose.
type TextOptions struct {
	Amount   string `json:"amount,omitempty"`
	Tone     string `json:"tone,omitempty"`
	Audience string `json:"audience,omitempty"`
	Language string `json:"language,omitempty"`
}

// ImageOptions tunes generated imagery.
type ImageOptions struct {
	Source string `json:"source,omitempty"`
	Model  string `json:"model,omitempty"`
	Style  string `json:"style,omitempty"`
}

// SharingOptions controls who can open the generated deck.
type SharingOptions struct {
	WorkspaceAccess string `json:"workspaceAccess,omitempty"`
	ExternalAccess  string `json:"externalAccess,omitempty"`
}

// GenerationRequest is the payload for a fresh deck generation.
type GenerationRequest struct {
	InputText              string          `json:"inputText"`
	TextMode               string          `json:"textMode,omitempty"`
	Format                 string          `json:"format,omitempty"`
	ThemeID                string          `json:"themeId,omitempty"`
	NumCards               int             `json:"numCards,omitempty"`
	CardSplit              string          `json:"cardSplit,omitempty"`
	AdditionalInstructions string          `json:"additionalInstructions,omitempty"`
	FolderIDs              []string        `json:"folderIds,omitempty"`
	ExportAs               string          `json:"exportAs,omitempty"`
	TextOptions            *TextOptions    `json:"textOptions,omitempty"`
	ImageOptions           *ImageOptions   `json:"imageOptions,omitempty"`
	SharingOptions         *SharingOptions `json:"sharingOptions,omitempty"`
}

// FromTemplateRequest is the payload for a generation seeded from an
// existing deck used as a template.
type FromTemplateRequest struct {
	GammaID        string          `json:"gammaId"`
	Prompt         string          `json:"prompt"`
	ThemeID        string          `json:"themeId,omitempty"`
	FolderIDs      []string        `json:"folderIds,omitempty"`
	ExportAs       string          `json:"exportAs,omitempty"`
	ImageOptions   *ImageOptions   `json:"imageOptions,omitempty"`
	SharingOptions *SharingOptions `json:"sharingOptions,omitempty"`
}

// GenerationStatus is the polled state of one generation.
type GenerationStatus struct {
	GenerationID string            `json:"generationId"`
	Status       string            `json:"status"`
	GammaURL     string            `json:"gammaUrl,omitempty"`
	ExportURL    string            `json:"exportUrl,omitempty"`
	URLs         map[string]string `json:"urls,omitempty"`
	Credits      *CreditsInfo      `json:"credits,omitempty"`
}

// Done reports whether the generation reached a terminal state.
func (s *GenerationStatus) Done() bool {
	return s.Status == StatusCompleted || s.Status == StatusFailed
}

// ExportLocation returns the URL of the exported file, preferring the
// direct export URL over the per-format map.
func (s *GenerationStatus) ExportLocation(format string) string {
	if s.ExportURL != "" {
		return s.ExportURL
	}
	return s.URLs[format]
}

// CreditsInfo reports account credit usage attached to a status response.
type CreditsInfo struct {
	Deducted  float64 `json:"deducted"`
	Remaining float64 `json:"remaining"`
}

// ThemeInfo is one theme available to the account.
type ThemeInfo struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Type          string   `json:"type,omitempty"`
	ColorKeywords []string `json:"colorKeywords,omitempty"`
	ToneKeywords  []string `json:"toneKeywords,omitempty"`
}

// FolderInfo is one folder available to the account.
type FolderInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AuthError reports a rejected API key.
type AuthError struct {
	Operation string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("gamma %s: API key rejected", e.Operation)
}

// RequestError reports a request the API refused, carrying the server's
// own message when one was returned.
type RequestError struct {
	Operation string
	Message   string
}

func (e *RequestError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gamma %s: bad request", e.Operation)
	}
	return fmt.Sprintf("gamma %s: %s", e.Operation, e.Message)
}

// GenerationFailedError reports a generation that ended in the failed
// state.
type GenerationFailedError struct {
	GenerationID string
}

func (e *GenerationFailedError) Error() string {
	return fmt.Sprintf("gamma generation %s failed", e.GenerationID)
}

// PollTimeoutError reports a generation that did not finish within the
// polling window.
type PollTimeoutError struct {
	GenerationID string
	LastStatus   string
}

func (e *PollTimeoutError) Error() string {
	return fmt.Sprintf("gamma generation %s still %s after polling timeout", e.GenerationID, e.LastStatus)
}
