package report

import (
	"bytes"
	"text/template"
)

var reportFuncs = template.FuncMap{
	"mul100": func(x float64) float64 { return x * 100.0 },
}

const summaryTemplate = `Backtest Summary {{if .RunID}}({{.RunID}}){{end}}
  Window:           {{.Start.Format "2006-01-02"}} .. {{.End.Format "2006-01-02"}}
  Initial Capital:  {{printf "%.2f" .InitialCapital}}
  Final Cash:       {{printf "%.2f" .FinalCash}}
  Held Value:       {{printf "%.2f" .HeldValue}}
  Final Value:      {{printf "%.2f" .FinalValue}}
  Profit/Loss:      {{printf "%.2f" .TotalProfit}}
  Return:           {{printf "%.2f" .ReturnPct}}%
  Buys:             {{.Buys}}
  Sells:            {{.Sells}}
  Still Open:       {{.OpenCount}}
{{- if gt .Sells 0}}
  Win Rate:         {{printf "%.1f" (mul100 .WinRate)}}%
  Avg Trade Return: {{printf "%.2f" .AvgTradeReturnPct}}%
{{- end}}
`

// Render formats the summary as a human-readable block for the CLI.
func (s Summary) Render() (string, error) {
	t, err := template.New("summary").Funcs(reportFuncs).Parse(summaryTemplate)
	if err != nil {
		return "", err
	}

	buf := new(bytes.Buffer)
	if err := t.Execute(buf, s); err != nil {
		return "", err
	}
	return buf.String(), nil
}
