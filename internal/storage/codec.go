package storage

import (
	"encoding/json"
	"errors"

	"catbox/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

func EncodeRun(r model.RunRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeRun(data []byte) (model.RunRecord, error) {
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.RunRecord{}, err
	}
	return run, nil
}

func EncodeOutcome(o model.OutcomeRecord) ([]byte, error) {
	return json.Marshal(o)
}

func DecodeOutcome(data []byte) (model.OutcomeRecord, error) {
	var outcome model.OutcomeRecord
	if err := json.Unmarshal(data, &outcome); err != nil {
		return model.OutcomeRecord{}, err
	}
	if err := checkVersion(outcome.VersionedRecord); err != nil {
		return model.OutcomeRecord{}, err
	}
	return outcome, nil
}

func EncodeTrajectory(points []model.TrajectoryPoint) ([]byte, error) {
	return json.Marshal(points)
}

func DecodeTrajectory(data []byte) ([]model.TrajectoryPoint, error) {
	var points []model.TrajectoryPoint
	if err := json.Unmarshal(data, &points); err != nil {
		return nil, err
	}
	return points, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
