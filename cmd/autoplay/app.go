package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/saltyorg/autoplay/internal/config"
	"github.com/saltyorg/autoplay/internal/database"
	"github.com/saltyorg/autoplay/internal/deviceprofile"
	"github.com/saltyorg/autoplay/internal/logging"
	"github.com/saltyorg/autoplay/internal/mediabrowser"
	"github.com/saltyorg/autoplay/internal/offline"
	"github.com/saltyorg/autoplay/internal/preferences"
)

const deviceIDSetting = "device.id"

// app holds what most commands share: the database, typed settings and the
// offline and preference stores on top of it.
type app struct {
	db         *database.DB
	loader     *config.Loader
	offline    *offline.Provider
	selections *preferences.Selections
	deviceID   string
}

func openApp() (*app, error) {
	db, err := database.New(dbPath)
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}
	if err := db.InitializeDefaults(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize settings: %w", err)
	}

	loader := config.NewLoader(db)

	// -v flags win over the stored level
	level := logging.LevelForVerbosity(verbosity)
	if verbosity == 0 {
		level = loader.String("log.level", "info")
	}
	logging.Apply(level, loader, logging.FilePathForDB(dbPath))

	a := &app{
		db:         db,
		loader:     loader,
		offline:    offline.NewProvider(db),
		selections: preferences.NewSelections(db),
	}

	if a.deviceID, err = a.resolveDeviceID(); err != nil {
		db.Close()
		return nil, err
	}

	log.Debug().Str("database", db.Path()).Str("device_id", a.deviceID).Msg("Opened application state")
	return a, nil
}

// resolveDeviceID returns the --device-id flag, or a stored id generated on first use.
func (a *app) resolveDeviceID() (string, error) {
	if deviceID != "" {
		return deviceID, nil
	}
	if id := a.loader.String(deviceIDSetting, ""); id != "" {
		return id, nil
	}
	id := uuid.NewString()
	if err := a.db.SetSetting(deviceIDSetting, id); err != nil {
		return "", err
	}
	log.Info().Str("device_id", id).Msg("Generated device id")
	return id, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

func (a *app) server() (*mediabrowser.Client, error) {
	if serverURL == "" || apiKey == "" {
		return nil, fmt.Errorf("--server and --api-key are required (or set AUTOPLAY_SERVER and AUTOPLAY_API_KEY)")
	}
	flavor, err := mediabrowser.ParseFlavor(serverType)
	if err != nil {
		return nil, err
	}

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "autoplay"
	}

	return mediabrowser.New(mediabrowser.Config{
		URL:    serverURL,
		APIKey: apiKey,
		Flavor: flavor,
		Identity: mediabrowser.Identity{
			Client:   "Autoplay",
			Device:   hostname,
			DeviceID: a.deviceID,
			Version:  version,
		},
	}), nil
}

func (a *app) profiles() (*deviceprofile.Registry, error) {
	return openProfiles(a.loader)
}

// openProfiles loads the profile registry from the --profiles flag or the
// profiles.path setting.
func openProfiles(loader *config.Loader) (*deviceprofile.Registry, error) {
	path := profilesPath
	if path == "" {
		path = loader.String("profiles.path", "")
	}
	return deviceprofile.NewRegistry(path)
}
