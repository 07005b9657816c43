package stats

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
)

const sweepsDir = "sweeps"

type SweepResult struct {
	RunID             string  `json:"run_id"`
	Seed              int64   `json:"seed"`
	IsAlive           bool    `json:"is_alive"`
	CauseOfDeath      string  `json:"cause_of_death,omitempty"`
	ElapsedSeconds    float64 `json:"elapsed_seconds"`
	FinalTemperatureK float64 `json:"final_temperature_k"`
	FinalEntropy      float64 `json:"final_entropy"`
	FinalCorruption   float64 `json:"final_corruption"`
	InstinctOverrides int     `json:"instinct_overrides"`
	LCDAttacks        int     `json:"lcd_attacks"`
}

type SweepSummary struct {
	ID                    string        `json:"id"`
	Scenario              string        `json:"scenario,omitempty"`
	PowerMode             string        `json:"power_mode,omitempty"`
	Stubbornness          float64       `json:"stubbornness"`
	DurationSeconds       int64         `json:"duration_seconds"`
	TotalRuns             int           `json:"total_runs"`
	Survived              int           `json:"survived"`
	SurvivalRate          float64       `json:"survival_rate"`
	MeanFinalTemperatureK float64       `json:"mean_final_temperature_k"`
	StdFinalTemperatureK  float64       `json:"std_final_temperature_k"`
	MeanFinalEntropy      float64       `json:"mean_final_entropy"`
	MeanFinalCorruption   float64       `json:"mean_final_corruption"`
	StartedAtUTC          string        `json:"started_at_utc,omitempty"`
	CompletedAtUTC        string        `json:"completed_at_utc,omitempty"`
	Results               []SweepResult `json:"results"`
}

// BuildSweepSummary aggregates per-seed results into sweep-level statistics.
func BuildSweepSummary(id string, results []SweepResult) (SweepSummary, error) {
	if id == "" {
		return SweepSummary{}, fmt.Errorf("sweep id is required")
	}
	if len(results) == 0 {
		return SweepSummary{}, fmt.Errorf("sweep needs at least one result")
	}

	summary := SweepSummary{
		ID:        id,
		TotalRuns: len(results),
		Results:   results,
	}

	temperatures := make([]float64, 0, len(results))
	entropies := make([]float64, 0, len(results))
	corruptions := make([]float64, 0, len(results))
	for _, result := range results {
		if result.IsAlive {
			summary.Survived++
		}
		temperatures = append(temperatures, result.FinalTemperatureK)
		entropies = append(entropies, result.FinalEntropy)
		corruptions = append(corruptions, result.FinalCorruption)
	}
	summary.SurvivalRate = float64(summary.Survived) / float64(summary.TotalRuns)
	summary.MeanFinalTemperatureK = mean(temperatures)
	summary.StdFinalTemperatureK = std(temperatures)
	summary.MeanFinalEntropy = mean(entropies)
	summary.MeanFinalCorruption = mean(corruptions)
	return summary, nil
}

func WriteSweepSummary(baseDir string, summary SweepSummary) (string, error) {
	if summary.ID == "" {
		return "", fmt.Errorf("sweep id is required")
	}
	path := sweepSummaryPath(baseDir, summary.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := writeJSON(path, summary); err != nil {
		return "", err
	}
	return filepath.Dir(path), nil
}

func ReadSweepSummary(baseDir, id string) (SweepSummary, bool, error) {
	if id == "" {
		return SweepSummary{}, false, fmt.Errorf("sweep id is required")
	}
	data, err := os.ReadFile(sweepSummaryPath(baseDir, id))
	if err != nil {
		if os.IsNotExist(err) {
			return SweepSummary{}, false, nil
		}
		return SweepSummary{}, false, err
	}
	var summary SweepSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return SweepSummary{}, false, err
	}
	return summary, true, nil
}

func ListSweepSummaries(baseDir string) ([]SweepSummary, error) {
	root := filepath.Join(baseDir, sweepsDir)
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return []SweepSummary{}, nil
		}
		return nil, err
	}

	summaries := make([]SweepSummary, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		summary, ok, err := ReadSweepSummary(baseDir, entry.Name())
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		summaries = append(summaries, summary)
	}
	sort.Slice(summaries, func(i, j int) bool {
		switch {
		case summaries[i].StartedAtUTC == summaries[j].StartedAtUTC:
			return summaries[i].ID < summaries[j].ID
		case summaries[i].StartedAtUTC == "":
			return false
		case summaries[j].StartedAtUTC == "":
			return true
		default:
			return summaries[i].StartedAtUTC > summaries[j].StartedAtUTC
		}
	})
	return summaries, nil
}

func sweepSummaryPath(baseDir, id string) string {
	return filepath.Join(baseDir, sweepsDir, id, "sweep.json")
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, value := range values {
		sum += value
	}
	return sum / float64(len(values))
}

// std returns population standard deviation.
func std(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	sum := 0.0
	for _, value := range values {
		diff := m - value
		sum += diff * diff
	}
	return math.Sqrt(sum / float64(len(values)))
}
