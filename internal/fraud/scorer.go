package fraud

import (
	"errors"
	"log/slog"
)

const (
	LabelFraud    = "Fraudulent"
	LabelNotFraud = "Not Fraudulent"
)

// Prediction is the verdict for one transaction.
type Prediction struct {
	Label string `json:"label"`
	Fraud bool   `json:"fraud"`
	// Confidence is the probability of the predicted class.
	Confidence float64 `json:"confidence"`
}

// Scorer applies a trained artifact to single transactions. Encoded
// features are reindexed to the artifact's feature order; features the
// artifact knows but the encoder does not produce are zero.
type Scorer struct {
	art   *Artifact
	enc   *Encoder
	index []int
}

func NewScorer(art *Artifact, logger *slog.Logger) (*Scorer, error) {
	if art == nil || art.Forest == nil {
		return nil, errors.New("scorer needs a trained artifact")
	}
	enc := NewEncoder(logger)
	pos := make(map[string]int)
	for i, name := range enc.FeatureNames() {
		pos[name] = i
	}
	index := make([]int, len(art.FeatureNames))
	for i, name := range art.FeatureNames {
		if p, ok := pos[name]; ok {
			index[i] = p
		} else {
			index[i] = -1
		}
	}
	return &Scorer{art: art, enc: enc, index: index}, nil
}

// Artifact returns the model the scorer uses.
func (s *Scorer) Artifact() *Artifact { return s.art }

func (s *Scorer) vector(t Transaction) []float64 {
	raw := s.enc.Encode(t)
	x := make([]float64, len(s.index))
	for i, p := range s.index {
		if p >= 0 {
			x[i] = raw[p]
		}
	}
	return x
}

// Predict returns the class index for t.
func (s *Scorer) Predict(t Transaction) int {
	return s.art.Forest.Predict(s.vector(t))
}

// Score classifies t.
func (s *Scorer) Score(t Transaction) Prediction {
	probs := s.art.Forest.PredictProba(s.vector(t))
	class := 0
	for c, v := range probs {
		if v > probs[class] {
			class = c
		}
	}
	p := Prediction{Fraud: class == 1, Label: LabelNotFraud}
	if p.Fraud {
		p.Label = LabelFraud
	}
	if class < len(probs) {
		p.Confidence = probs[class]
	}
	return p
}
