package fraud

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
)

// ClassLabels names the two classes in reports.
var ClassLabels = []string{"Not Fraud", "Fraud"}

// ClassMetrics are the per-class scores of a classification report.
type ClassMetrics struct {
	Label     string  `json:"label"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Report is a classification report over a test set.
type Report struct {
	Classes     []ClassMetrics `json:"classes"`
	Accuracy    float64        `json:"accuracy"`
	MacroAvg    ClassMetrics   `json:"macro_avg"`
	WeightedAvg ClassMetrics   `json:"weighted_avg"`
	Total       int            `json:"total"`
}

// Evaluate scores predictions against true labels. labels names each class
// index; classes without a name are reported by number.
func Evaluate(yTrue, yPred []int, labels []string) Report {
	k := len(labels)
	for i := range yTrue {
		k = max(k, yTrue[i]+1, yPred[i]+1)
	}
	tp := make([]int, k)
	predicted := make([]int, k)
	actual := make([]int, k)
	correct := 0
	for i := range yTrue {
		actual[yTrue[i]]++
		predicted[yPred[i]]++
		if yTrue[i] == yPred[i] {
			tp[yTrue[i]]++
			correct++
		}
	}

	r := Report{Total: len(yTrue)}
	if len(yTrue) > 0 {
		r.Accuracy = float64(correct) / float64(len(yTrue))
	}
	r.MacroAvg.Label = "macro avg"
	r.WeightedAvg.Label = "weighted avg"
	for c := 0; c < k; c++ {
		m := ClassMetrics{Support: actual[c], Label: strconv.Itoa(c)}
		if c < len(labels) {
			m.Label = labels[c]
		}
		m.Precision = ratio(tp[c], predicted[c])
		m.Recall = ratio(tp[c], actual[c])
		if m.Precision+m.Recall > 0 {
			m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
		}
		r.Classes = append(r.Classes, m)

		r.MacroAvg.Precision += m.Precision / float64(k)
		r.MacroAvg.Recall += m.Recall / float64(k)
		r.MacroAvg.F1 += m.F1 / float64(k)
		if r.Total > 0 {
			w := float64(m.Support) / float64(r.Total)
			r.WeightedAvg.Precision += m.Precision * w
			r.WeightedAvg.Recall += m.Recall * w
			r.WeightedAvg.F1 += m.F1 * w
		}
	}
	r.MacroAvg.Support = r.Total
	r.WeightedAvg.Support = r.Total
	return r
}

func ratio(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}

// Render writes the report as a table.
func (r Report) Render(w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"", "precision", "recall", "f1-score", "support"})
	table.SetBorder(false)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	row := func(m ClassMetrics) []string {
		return []string{m.Label, f2(m.Precision), f2(m.Recall), f2(m.F1), strconv.Itoa(m.Support)}
	}
	for _, m := range r.Classes {
		table.Append(row(m))
	}
	table.Append([]string{"accuracy", "", "", f2(r.Accuracy), strconv.Itoa(r.Total)})
	table.Append(row(r.MacroAvg))
	table.Append(row(r.WeightedAvg))
	table.Render()
}

func f2(v float64) string { return fmt.Sprintf("%.2f", v) }
