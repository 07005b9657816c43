package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"catbox/internal/model"
)

const (
	runIndexFile      = "run_index.json"
	summaryFile       = "summary.json"
	trajectoryFile    = "trajectory.csv"
	trajectoryColumns = 7
)

type RunConfig struct {
	RunID           string  `json:"run_id"`
	Seed            int64   `json:"seed"`
	Precision       uint32  `json:"precision"`
	Stubbornness    float64 `json:"stubbornness"`
	Scenario        string  `json:"scenario,omitempty"`
	PowerMode       string  `json:"power_mode,omitempty"`
	DurationSeconds int64   `json:"duration_seconds"`
}

type RunSummary struct {
	Config  RunConfig           `json:"config"`
	Outcome model.OutcomeRecord `json:"outcome"`
}

type RunArtifacts struct {
	Config     RunConfig
	Outcome    model.OutcomeRecord
	Trajectory []model.TrajectoryPoint
}

type RunIndexEntry struct {
	RunID             string  `json:"run_id"`
	Scenario          string  `json:"scenario,omitempty"`
	Seed              int64   `json:"seed"`
	Stubbornness      float64 `json:"stubbornness"`
	DurationSeconds   int64   `json:"duration_seconds"`
	IsAlive           bool    `json:"is_alive"`
	CauseOfDeath      string  `json:"cause_of_death,omitempty"`
	FinalTemperatureK float64 `json:"final_temperature_k"`
	CreatedAtUTC      string  `json:"created_at_utc"`
}

// WriteRunArtifacts persists one run's summary and trajectory under
// baseDir/<run id> and returns the run directory.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	summary := RunSummary{Config: artifacts.Config, Outcome: artifacts.Outcome}
	if err := writeJSON(filepath.Join(runDir, summaryFile), summary); err != nil {
		return "", err
	}
	if err := writeTrajectoryCSV(filepath.Join(runDir, trajectoryFile), artifacts.Trajectory); err != nil {
		return "", err
	}

	return runDir, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	path := filepath.Join(baseDir, runIndexFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Prefer later appended entries for equal timestamps.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

func ReadRunSummary(baseDir, runID string) (RunSummary, bool, error) {
	path := filepath.Join(baseDir, runID, summaryFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return RunSummary{}, false, nil
		}
		return RunSummary{}, false, err
	}

	var summary RunSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return RunSummary{}, false, err
	}
	return summary, true, nil
}

func ReadTrajectory(baseDir, runID string) ([]model.TrajectoryPoint, bool, error) {
	path := filepath.Join(baseDir, runID, trajectoryFile)
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []model.TrajectoryPoint{}, true, nil
		}
		return nil, false, err
	}
	if len(header) != trajectoryColumns {
		return nil, false, fmt.Errorf("trajectory header must have %d columns", trajectoryColumns)
	}

	points := make([]model.TrajectoryPoint, 0, 128)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		point, err := parseTrajectoryRow(record)
		if err != nil {
			return nil, false, err
		}
		points = append(points, point)
	}
	return points, true, nil
}

func writeTrajectoryCSV(path string, points []model.TrajectoryPoint) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"step", "photon_count", "entropy", "temperature_k", "corruption", "activity", "stress"}); err != nil {
		return err
	}
	for _, point := range points {
		if err := writer.Write([]string{
			strconv.Itoa(point.Step),
			strconv.Itoa(point.PhotonCount),
			strconv.FormatFloat(point.Entropy, 'f', -1, 64),
			strconv.FormatFloat(point.TemperatureK, 'f', -1, 64),
			strconv.FormatFloat(point.Corruption, 'f', -1, 64),
			strconv.FormatFloat(point.Activity, 'f', -1, 64),
			strconv.FormatFloat(point.Stress, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func parseTrajectoryRow(record []string) (model.TrajectoryPoint, error) {
	if len(record) != trajectoryColumns {
		return model.TrajectoryPoint{}, fmt.Errorf("trajectory row must have %d columns", trajectoryColumns)
	}

	step, err := strconv.Atoi(record[0])
	if err != nil {
		return model.TrajectoryPoint{}, err
	}
	photons, err := strconv.Atoi(record[1])
	if err != nil {
		return model.TrajectoryPoint{}, err
	}

	values := make([]float64, 5)
	for i, raw := range record[2:] {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return model.TrajectoryPoint{}, err
		}
		values[i] = value
	}

	return model.TrajectoryPoint{
		Step:         step,
		PhotonCount:  photons,
		Entropy:      values[0],
		TemperatureK: values[1],
		Corruption:   values[2],
		Activity:     values[3],
		Stress:       values[4],
	}, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}
