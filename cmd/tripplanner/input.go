package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"

	"trip-planner/internal/database"
	"trip-planner/internal/models"
	"trip-planner/internal/rail"
)

// tripInput is the planner input file
type tripInput struct {
	Participants []models.Participant `json:"participants"`
	Gites        []models.Gite        `json:"gites"`
}

func readInput(path string) (*tripInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	var in tripInput
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("failed to parse input: %w", err)
	}

	seen := make(map[string]bool, len(in.Participants))
	drivers := 0
	for _, p := range in.Participants {
		if p.Name == "" {
			return nil, fmt.Errorf("participant without a name")
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("duplicate participant %s", p.Name)
		}
		seen[p.Name] = true
		if p.IsDriver {
			if p.Capacity < 1 {
				return nil, fmt.Errorf("driver %s needs a capacity of at least 1", p.Name)
			}
			drivers++
		}
	}
	if drivers == 0 && len(in.Participants) > 0 {
		return nil, fmt.Errorf("no driver among %d participants", len(in.Participants))
	}
	for i := range in.Gites {
		if in.Gites[i].ID == "" {
			in.Gites[i].ID = fmt.Sprintf("gite-%d", i+1)
		}
	}
	return &in, nil
}

// importNetwork loads stations and line stops from files into the station repository
func importNetwork(ctx context.Context, f flags, repo database.StationRepository) error {
	if f.stations == "" {
		return nil
	}
	file, err := os.Open(f.stations)
	if err != nil {
		return fmt.Errorf("failed to open stations: %w", err)
	}
	defer file.Close()

	stations, err := rail.LoadStations(file)
	if err != nil {
		return err
	}
	network := rail.NewNetwork(stations)

	if f.stopTimes != "" {
		st, err := os.Open(f.stopTimes)
		if err != nil {
			return fmt.Errorf("failed to open stop times: %w", err)
		}
		defer st.Close()

		var blacklist []string
		if f.blacklist != "" {
			blacklist = strings.Split(f.blacklist, ",")
		}
		lines, err := rail.LoadStopTimes(st, blacklist)
		if err != nil {
			return err
		}
		for line, codes := range lines {
			network.AddLine(line, codes)
		}
	}

	log.Infof("[RAIL] Importing %d stations", network.Len())
	return network.SaveTo(ctx, repo)
}
