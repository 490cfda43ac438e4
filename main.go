package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"argo_data_import/config"
	"argo_data_import/database"
	"argo_data_import/decoder"
	"argo_data_import/loader"
	"argo_data_import/logger"
	"argo_data_import/mapper"
	"argo_data_import/metrics"
	"argo_data_import/scanner"
)

func main() {
	if len(os.Args) < 2 {
		showHelp()
		return
	}

	command := os.Args[1]

	if needsLogging(command) {
		cfg := loadConfig()
		if err := logger.Init(cfg); err != nil {
			log.Fatalf("Failed to initialize logging: %v", err)
		}
		defer func() {
			if err := logger.Close(); err != nil {
				log.Fatalf("Failed to close logging: %v", err)
			}
		}()
		logger.LogCommand(os.Args[0], os.Args)
	}

	switch command {
	case "connect":
		connectCommand()
	case "setup":
		setupCommand(hasFlag(os.Args[2:], "--recreate"))
	case "migrate":
		migrateCommand()
	case "migrate:create":
		if len(os.Args) < 3 {
			fmt.Println("Error: migration name required")
			fmt.Println("Usage: go run main.go migrate:create <migration_name>")
			return
		}
		createMigrationCommand(os.Args[2])
	case "migrate:status":
		migrationStatusCommand()
	case "db:info":
		dbInfoCommand()
	case "scan":
		dir := ""
		if len(os.Args) >= 3 {
			dir = os.Args[2]
		}
		scanCommand(dir)
	case "test:insert":
		testInsertCommand()
	case "help":
		showHelp()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		showHelp()
	}
}

func needsLogging(command string) bool {
	loggingCommands := map[string]bool{
		"connect":        true,
		"setup":          true,
		"migrate":        true,
		"migrate:create": true,
		"migrate:status": true,
		"scan":           true,
		"test:insert":    true,
	}
	return loggingCommands[command]
}

func hasFlag(args []string, flag string) bool {
	for _, a := range args {
		if a == flag {
			return true
		}
	}
	return false
}

func showHelp() {
	fmt.Println("Argo Float Import - NetCDF to Database Loader")
	fmt.Println("")
	fmt.Println("Usage: go run main.go <command> [arguments]")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  connect               Test database connection")
	fmt.Println("  setup [--recreate]    Create the database and the float/measurement tables")
	fmt.Println("                        (--recreate drops existing tables and their data)")
	fmt.Println("  migrate               Run pending migrations")
	fmt.Println("  migrate:create <name> Create a new migration file")
	fmt.Println("  migrate:status        Show migration status")
	fmt.Println("  db:info               Show database information")
	fmt.Println("  scan [directory]      Load every float file in a directory (non-recursive,")
	fmt.Println("                        defaults to ingest.input_dir)")
	fmt.Println("  test:insert           Load a small built-in sample profile")
	fmt.Println("  help                  Show this help message")
	fmt.Println("")
	fmt.Println("Configuration:")
	fmt.Println("  Edit config.yaml (or set CONFIG_PATH) to configure the database and ingest")
	fmt.Println("  DATABASE_URL in the environment or .env overrides the configured database")
	fmt.Println("")
	fmt.Println("Field mapping (ingest.policy):")
	fmt.Println("  auto      adjusted channels when any *_ADJUSTED variable exists, raw otherwise")
	fmt.Println("  raw       PRES/TEMP/PSAL; rows need time and pressure")
	fmt.Println("  adjusted  PRES/TEMP/PSAL_ADJUSTED; rows need time, pressure, temperature, salinity")
	fmt.Println("")
	fmt.Println("Sample files:")
	fmt.Println("  go run ./cmd/genmock -out test_data [-format cdf|hdf5]")
	fmt.Println("  go run . scan test_data")
}

func loadConfig() *config.Config {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	return cfg
}

func connectDatabase() (*config.Config, error) {
	cfg := loadConfig()

	if _, err := database.Connect(cfg); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func connectCommand() {
	logger.Println("Testing database connection...")

	cfg, err := connectDatabase()
	if err != nil {
		logger.Fatalf("Connection failed: %v", err)
	}
	defer database.Close()

	logger.Printf("✓ Successfully connected to %s database\n", cfg.Database.Driver)

	info := database.GetDatabaseInfo(cfg)
	infoJSON, _ := json.MarshalIndent(info, "", "  ")
	logger.Printf("Connection info: %s\n", infoJSON)
}

// prepareDatabase creates the target database when asked to, connects and
// applies the schema setup mode
func prepareDatabase(ctx context.Context, cfg *config.Config, mode string) {
	if mode != config.SetupNone {
		if _, err := database.EnsureDatabase(ctx, cfg); err != nil {
			logger.Fatalf("Failed to ensure database exists: %v", err)
		}
	}

	db, err := database.Connect(cfg)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	if err := database.NewSchemaManager(db).Ensure(mode); err != nil {
		logger.Fatalf("Schema setup failed: %v", err)
	}

	if cfg.Migration.AutoMigrate {
		if err := database.NewMigrationRunner(db, cfg).RunMigrations(); err != nil {
			logger.Fatalf("Migration failed: %v", err)
		}
	}
}

func setupCommand(recreate bool) {
	ctx, cancel := signalContext()
	defer cancel()

	cfg := loadConfig()
	mode := config.SetupCreate
	if recreate {
		mode = config.SetupRecreate
		logger.Warnf("Recreating tables: existing floats and measurements will be deleted\n")
	}

	prepareDatabase(ctx, cfg, mode)
	defer database.Close()

	logger.LogResult("Setup", true, fmt.Sprintf("%s tables ready (%s)", cfg.Database.Driver, mode))
}

func migrateCommand() {
	logger.Println("Running database migrations...")

	cfg, err := connectDatabase()
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	runner := database.NewMigrationRunner(database.GetDB(), cfg)

	if err := runner.RunMigrations(); err != nil {
		logger.Fatalf("Migration failed: %v", err)
	}
}

func createMigrationCommand(name string) {
	logger.Printf("Creating migration: %s\n", name)

	cfg := loadConfig()
	runner := database.NewMigrationRunner(nil, cfg)

	filePath, err := runner.CreateMigration(name)
	if err != nil {
		logger.Fatalf("Failed to create migration: %v", err)
	}

	logger.Printf("✓ Migration created: %s\n", filePath)
}

func migrationStatusCommand() {
	logger.Println("Checking migration status...")

	cfg, err := connectDatabase()
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	runner := database.NewMigrationRunner(database.GetDB(), cfg)

	migrations, err := runner.GetMigrationStatus()
	if err != nil {
		logger.Fatalf("Failed to get migration status: %v", err)
	}

	if len(migrations) == 0 {
		logger.Println("No migrations found")
		return
	}

	logger.Printf("%-20s %-40s %s\n", "Version", "Name", "Status")
	logger.Println(strings.Repeat("-", 67))

	for _, m := range migrations {
		status := "Pending"
		if m.Applied {
			status = "Applied"
		}
		logger.Printf("%-20s %-40s %s\n", m.Version, m.Name, status)
	}
}

func dbInfoCommand() {
	fmt.Println("Database Information:")
	fmt.Println(strings.Repeat("=", 50))

	cfg, err := connectDatabase()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	info := database.GetDatabaseInfo(cfg)

	fmt.Printf("Database Type:     %v\n", info["driver"])
	fmt.Printf("Connection Status: %v\n", getConnectionStatusText(info["connected"]))

	switch cfg.Database.Driver {
	case "mysql", "postgres":
		if _, ok := info["url"]; ok {
			fmt.Printf("Source:            %v\n", info["url"])
		} else {
			fmt.Printf("Host:              %v\n", info["host"])
			fmt.Printf("Port:              %v\n", info["port"])
			fmt.Printf("Database:          %v\n", info["database"])
		}
	case "sqlite":
		fmt.Printf("File Path:         %v\n", info["path"])
	}

	if info["connected"] != true {
		fmt.Println("\nConnection failed - unable to retrieve detailed information")
		fmt.Println(strings.Repeat("=", 50))
		return
	}

	fmt.Println("\nConnection Pool:")
	fmt.Printf("  Max Connections: %v\n", info["max_open_connections"])
	fmt.Printf("  Open Connections:%v\n", info["open_connections"])
	fmt.Printf("  In Use:          %v\n", info["in_use"])
	fmt.Printf("  Idle:            %v\n", info["idle"])

	db := database.GetDB()
	if !database.NewSchemaManager(db).Ready() {
		fmt.Println("\nTables not created yet - run: go run main.go setup")
		fmt.Println(strings.Repeat("=", 50))
		return
	}

	stats, err := database.GetDataStats(db)
	if err != nil {
		fmt.Printf("\nFailed to read data statistics: %v\n", err)
		fmt.Println(strings.Repeat("=", 50))
		return
	}

	fmt.Println("\nData Information:")
	fmt.Printf("  Floats:          %d\n", stats.Floats)
	fmt.Printf("  Measurements:    %d\n", stats.Measurements)
	if stats.Earliest != nil && stats.Latest != nil {
		fmt.Printf("  Time Range:      %s to %s\n",
			stats.Earliest.UTC().Format("2006-01-02 15:04:05"),
			stats.Latest.UTC().Format("2006-01-02 15:04:05"))
	}

	fmt.Println(strings.Repeat("=", 50))
}

func getConnectionStatusText(connected interface{}) string {
	if conn, ok := connected.(bool); ok && conn {
		return "✓ Connected"
	}
	return "✗ Disconnected"
}

func newLoader(cfg *config.Config) *loader.Loader {
	mode, err := mapper.ParseMode(cfg.Ingest.Policy)
	if err != nil {
		logger.Fatalf("Invalid ingest policy: %v", err)
	}
	return loader.New(database.GetDB(), loader.Options{
		Mode:       mode,
		OnConflict: cfg.Ingest.OnConflict,
		BatchSize:  cfg.Ingest.BatchSize,
	})
}

func scanCommand(directoryPath string) {
	ctx, cancel := signalContext()
	defer cancel()

	cfg := loadConfig()
	if directoryPath == "" {
		directoryPath = cfg.Ingest.InputDir
	}

	prepareDatabase(ctx, cfg, cfg.Database.SetupMode)
	defer database.Close()

	m := metrics.New()
	netcdfScanner := scanner.NewNetCDFScanner(newLoader(cfg), decoder.NetCDF{})
	netcdfScanner.SetWorkerCount(cfg.Ingest.Workers)
	netcdfScanner.SetExtension(cfg.Ingest.Extension)
	netcdfScanner.SetMetrics(m)

	summary, err := netcdfScanner.ScanDirectory(ctx, directoryPath)
	if err != nil {
		logger.Fatalf("Scan failed: %v", err)
	}

	if cfg.Metrics.Textfile != "" {
		if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			logger.Errorf("%v\n", err)
		}
	}

	logger.LogResult("Directory scan", true,
		fmt.Sprintf("%d files, %d measurements loaded", len(summary.Results), summary.TotalRecords))
}

func testInsertCommand() {
	ctx, cancel := signalContext()
	defer cancel()

	logger.Println("Loading sample float profile...")

	cfg := loadConfig()
	prepareDatabase(ctx, cfg, config.SetupCreate)
	defer database.Close()

	ds, err := sampleProfile()
	if err != nil {
		logger.Fatalf("Failed to build sample profile: %v", err)
	}

	out, err := newLoader(cfg).ProcessDataset(ctx, ds)
	if err != nil {
		logger.Fatalf("Sample load failed: %v", err)
	}

	logger.LogResult("Sample profile", true,
		fmt.Sprintf("float %d (id %d), %d measurements loaded, %d dropped", out.WMOID, out.FloatID, out.Loaded, out.Dropped))
}

// sampleProfile is one raw profile of a test float with a missing pressure
// level
func sampleProfile() (*decoder.Dataset, error) {
	return decoder.Build("sample", []decoder.Variable{
		{Name: "PLATFORM_NUMBER", Dimensions: []string{"N_PROF", "STRING8"}, Values: []string{"1900001 "}},
		{Name: "PROJECT_NAME", Dimensions: []string{"N_PROF", "STRING64"}, Values: []string{"SAMPLE"}},
		{Name: "PI_NAME", Dimensions: []string{"N_PROF", "STRING64"}, Values: []string{"TEST OPERATOR"}},
		{Name: "JULD", Dimensions: []string{"N_PROF"}, Values: []float64{27000.25},
			Attributes: map[string]interface{}{"units": "days since 1950-01-01 00:00:00 UTC"}},
		{Name: "LATITUDE", Dimensions: []string{"N_PROF"}, Values: []float64{-35.12}},
		{Name: "LONGITUDE", Dimensions: []string{"N_PROF"}, Values: []float64{150.4}},
		{Name: "PRES", Dimensions: []string{"N_PROF", "N_LEVELS"}, Values: [][]float32{{4.5, 10.1, 99999, 50.3}},
			Attributes: map[string]interface{}{"_FillValue": float32(99999)}},
		{Name: "TEMP", Dimensions: []string{"N_PROF", "N_LEVELS"}, Values: [][]float32{{18.2, 18.1, 17.6, 15.9}},
			Attributes: map[string]interface{}{"_FillValue": float32(99999)}},
		{Name: "PSAL", Dimensions: []string{"N_PROF", "N_LEVELS"}, Values: [][]float32{{35.4, 35.4, 35.5, 35.6}},
			Attributes: map[string]interface{}{"_FillValue": float32(99999)}},
	}, nil)
}
