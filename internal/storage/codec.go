package storage

import (
	"encoding/json"
	"errors"

	"abcsmc/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

func EncodeRun(r model.Run) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeRun(data []byte) (model.Run, error) {
	var run model.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return model.Run{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.Run{}, err
	}
	return run, nil
}

func EncodePopulation(p model.Population) ([]byte, error) {
	return json.Marshal(p)
}

func DecodePopulation(data []byte) (model.Population, error) {
	var population model.Population
	if err := json.Unmarshal(data, &population); err != nil {
		return model.Population{}, err
	}
	if err := checkVersion(population.VersionedRecord); err != nil {
		return model.Population{}, err
	}
	return population, nil
}

func EncodeParticles(particles []model.Particle) ([]byte, error) {
	return json.Marshal(particles)
}

func DecodeParticles(data []byte) ([]model.Particle, error) {
	var particles []model.Particle
	if err := json.Unmarshal(data, &particles); err != nil {
		return nil, err
	}
	return particles, nil
}

func EncodeSummaryStatistics(s model.SummaryStatistics) ([]byte, error) {
	return json.Marshal(s)
}

func DecodeSummaryStatistics(data []byte) (model.SummaryStatistics, error) {
	var stats model.SummaryStatistics
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

func EncodeProbabilities(p []float64) ([]byte, error) {
	return json.Marshal(p)
}

func DecodeProbabilities(data []byte) ([]float64, error) {
	var probabilities []float64
	if err := json.Unmarshal(data, &probabilities); err != nil {
		return nil, err
	}
	return probabilities, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
