// internal/logclass/model.go
package logclass

import (
	"errors"
	"fmt"

	"github.com/signalnine/hostwatch/internal/protocol"
)

// TextModel is the persisted tier-2 classifier: a vectorizer feeding a
// linear decision function
type TextModel struct {
	Vectorizer *Vectorizer `json:"vectorizer"`
	Classifier *LogReg     `json:"classifier"`
}

// Predict labels an already-normalized line
func (m *TextModel) Predict(cleaned string) (protocol.Label, error) {
	if m == nil || m.Vectorizer == nil || m.Classifier == nil {
		return "", errors.New("text model not loaded")
	}
	return m.Classifier.Predict(m.Vectorizer.Transform(cleaned))
}

// Validate checks the persisted model is usable
func (m *TextModel) Validate() error {
	if m == nil || m.Vectorizer == nil || m.Classifier == nil {
		return errors.New("text model: missing vectorizer or classifier")
	}
	if err := m.Vectorizer.Validate(); err != nil {
		return err
	}
	if err := m.Classifier.Validate(); err != nil {
		return err
	}
	if got, want := len(m.Classifier.Coef[0]), len(m.Vectorizer.IDF); got != want {
		return fmt.Errorf("text model: classifier has %d weights, vectorizer has %d terms", got, want)
	}
	return nil
}
