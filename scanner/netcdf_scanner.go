package scanner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"argo_data_import/decoder"
	"argo_data_import/loader"
	"argo_data_import/logger"
	"argo_data_import/metrics"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Decoder reads one file into a dataset
type Decoder interface {
	Decode(path string) (*decoder.Dataset, error)
}

// NetCDFScanner finds float files in a directory and loads them
type NetCDFScanner struct {
	loader      *loader.Loader
	decoder     Decoder
	metrics     *metrics.Metrics
	clock       clockwork.Clock
	workerCount int
	extension   string
}

// FileJob is a file waiting to be processed
type FileJob struct {
	FilePath string
	FileName string
}

// ProcessResult is the outcome of processing one file
type ProcessResult struct {
	FilePath    string
	Status      loader.Status
	Policy      string
	WMOID       int64
	FloatID     uint
	RecordCount int
	ErrorCount  int
	Fingerprint uint64
	Duration    time.Duration
	Error       error
}

// Summary aggregates a scan run
type Summary struct {
	RunID        string
	Directory    string
	Results      []ProcessResult
	ByStatus     map[loader.Status]int
	TotalRecords int
	TotalDropped int
	Duplicates   map[uint64][]string
	Duration     time.Duration
}

// NewNetCDFScanner creates a scanner with a single worker
func NewNetCDFScanner(l *loader.Loader, dec Decoder) *NetCDFScanner {
	return &NetCDFScanner{
		loader:      l,
		decoder:     dec,
		clock:       clockwork.NewRealClock(),
		workerCount: 1,
		extension:   ".nc",
	}
}

// SetWorkerCount sets the number of parallel workers
func (ns *NetCDFScanner) SetWorkerCount(count int) {
	if count > 0 {
		ns.workerCount = count
	}
}

// SetExtension sets the file extension to scan for
func (ns *NetCDFScanner) SetExtension(ext string) {
	if ext == "" {
		return
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	ns.extension = strings.ToLower(ext)
}

// SetMetrics records per-file outcomes into m
func (ns *NetCDFScanner) SetMetrics(m *metrics.Metrics) {
	ns.metrics = m
}

// SetClock replaces the clock used for timings
func (ns *NetCDFScanner) SetClock(c clockwork.Clock) {
	ns.clock = c
}

// ScanDirectory processes every matching file in directoryPath. A file
// that fails is reported and the scan continues with the next one; only a
// missing or unreadable directory is an error.
func (ns *NetCDFScanner) ScanDirectory(ctx context.Context, directoryPath string) (*Summary, error) {
	start := ns.clock.Now()
	summary := &Summary{
		RunID:      uuid.NewString(),
		Directory:  directoryPath,
		ByStatus:   make(map[loader.Status]int),
		Duplicates: make(map[uint64][]string),
	}

	logger.Printf("Scan %s: scanning directory %s\n", summary.RunID, directoryPath)

	info, err := os.Stat(directoryPath)
	if err != nil {
		return nil, fmt.Errorf("directory does not exist: %s", directoryPath)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", directoryPath)
	}

	files, err := ns.findFiles(directoryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s files: %w", ns.extension, err)
	}

	if len(files) == 0 {
		logger.Printf("No %s files found in the directory\n", ns.extension)
		return summary, nil
	}

	logger.Printf("Found %d %s file(s) to process\n", len(files), ns.extension)
	logger.Printf("Processing with %d parallel workers\n", ns.workerCount)

	summary.Results = ns.processFilesParallel(ctx, files)
	sort.Slice(summary.Results, func(i, j int) bool {
		return summary.Results[i].FilePath < summary.Results[j].FilePath
	})

	seen := make(map[uint64][]string)
	for _, r := range summary.Results {
		summary.ByStatus[r.Status]++
		summary.TotalRecords += r.RecordCount
		summary.TotalDropped += r.ErrorCount
		if r.Fingerprint != 0 {
			seen[r.Fingerprint] = append(seen[r.Fingerprint], r.FilePath)
		}
	}
	for fp, paths := range seen {
		if len(paths) > 1 {
			summary.Duplicates[fp] = paths
		}
	}
	summary.Duration = ns.clock.Since(start)

	if ns.metrics != nil {
		ns.metrics.Finish(ns.clock.Now())
	}

	ns.displaySummary(summary)
	return summary, nil
}

// findFiles lists matching files in directoryPath, non-recursively
func (ns *NetCDFScanner) findFiles(directoryPath string) ([]FileJob, error) {
	entries, err := os.ReadDir(directoryPath)
	if err != nil {
		return nil, err
	}

	var files []FileJob
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.ToLower(filepath.Ext(entry.Name())) == ns.extension {
			files = append(files, FileJob{
				FilePath: filepath.Join(directoryPath, entry.Name()),
				FileName: entry.Name(),
			})
		}
	}
	return files, nil
}

func (ns *NetCDFScanner) processFilesParallel(ctx context.Context, files []FileJob) []ProcessResult {
	jobs := make(chan FileJob, len(files))
	results := make(chan ProcessResult, len(files))

	var wg sync.WaitGroup
	for i := 0; i < ns.workerCount; i++ {
		wg.Add(1)
		go ns.worker(ctx, jobs, results, &wg)
	}

	for _, file := range files {
		jobs <- file
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	all := make([]ProcessResult, 0, len(files))
	for result := range results {
		all = append(all, result)
		logger.LogProgress(len(all), len(files), filepath.Base(result.FilePath))
	}
	return all
}

func (ns *NetCDFScanner) worker(ctx context.Context, jobs <-chan FileJob, results chan<- ProcessResult, wg *sync.WaitGroup) {
	defer wg.Done()

	for job := range jobs {
		var result ProcessResult
		if err := ctx.Err(); err != nil {
			result = ProcessResult{FilePath: job.FilePath, Status: loader.StatusFailed, Error: err}
		} else {
			result = ns.ProcessFile(ctx, job)
		}
		if ns.metrics != nil {
			ns.metrics.ObserveFile(string(result.Status), result.Policy,
				result.RecordCount, result.ErrorCount, result.FloatID != 0, result.Duration)
		}
		results <- result
	}
}

// ProcessFile decodes, maps and loads a single file
func (ns *NetCDFScanner) ProcessFile(ctx context.Context, job FileJob) ProcessResult {
	start := ns.clock.Now()
	result := ProcessResult{
		FilePath: job.FilePath,
		Status:   loader.StatusFailed,
	}

	logger.Printf("Processing file: %s\n", job.FileName)

	fp, err := fingerprint(job.FilePath)
	if err != nil {
		result.Error = fmt.Errorf("failed to read file: %w", err)
		result.Duration = ns.clock.Since(start)
		logger.LogResult(job.FileName, false, result.Error.Error())
		return result
	}
	result.Fingerprint = fp

	ds, err := ns.decoder.Decode(job.FilePath)
	if err != nil {
		result.Error = err
		result.Duration = ns.clock.Since(start)
		logger.LogResult(job.FileName, false, err.Error())
		return result
	}

	out, err := ns.loader.ProcessDataset(ctx, ds)
	result.Status = out.Status
	result.WMOID = out.WMOID
	result.FloatID = out.FloatID
	result.RecordCount = out.Loaded
	result.ErrorCount = out.Dropped
	if out.Policy != 0 {
		result.Policy = out.Policy.String()
	}
	result.Error = err
	result.Duration = ns.clock.Since(start)

	switch {
	case err != nil && loader.IsRejection(err):
		logger.Warnf("Skipped %s: %v\n", job.FileName, err)
	case err != nil:
		logger.LogResult(job.FileName, false, err.Error())
	default:
		logger.Printf("✓ Completed %s: float %d, %d records loaded, %d dropped in %v\n",
			job.FileName, result.WMOID, result.RecordCount, result.ErrorCount, result.Duration)
	}

	return result
}

// fingerprint hashes the file's bytes
func fingerprint(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}

func (ns *NetCDFScanner) displaySummary(s *Summary) {
	logger.Println("\n" + strings.Repeat("=", 60))
	logger.Println("PROCESSING SUMMARY")
	logger.Println(strings.Repeat("=", 60))

	for _, r := range s.Results {
		name := filepath.Base(r.FilePath)
		switch r.Status {
		case loader.StatusLoaded:
			logger.Printf("✅ %s: float %d, %d records, %d dropped (%v)\n",
				name, r.WMOID, r.RecordCount, r.ErrorCount, r.Duration)
		case loader.StatusZeroLoaded:
			logger.Printf("⚠️  %s: float %d, no valid records (%d dropped)\n", name, r.WMOID, r.ErrorCount)
		case loader.StatusRejected:
			logger.Printf("⏭  %s: SKIPPED - %v\n", name, r.Error)
		default:
			var decodeErr *decoder.DecodeError
			if errors.As(r.Error, &decodeErr) {
				logger.Printf("❌ %s: UNREADABLE - %v\n", name, decodeErr.Err)
			} else {
				logger.Printf("❌ %s: FAILED - %v\n", name, r.Error)
			}
		}
	}

	for _, paths := range s.Duplicates {
		logger.Warnf("identical contents, measurements appended more than once: %s\n", strings.Join(paths, ", "))
	}

	logger.Println(strings.Repeat("-", 60))
	logger.Printf("Run ID: %s\n", s.RunID)
	logger.Printf("Total files processed: %d\n", len(s.Results))
	logger.Printf("Loaded: %d\n", s.ByStatus[loader.StatusLoaded])
	logger.Printf("Zero-loaded: %d\n", s.ByStatus[loader.StatusZeroLoaded])
	logger.Printf("Skipped: %d\n", s.ByStatus[loader.StatusRejected])
	logger.Printf("Failed: %d\n", s.ByStatus[loader.StatusFailed])
	logger.Printf("Total records imported: %d\n", s.TotalRecords)
	logger.Printf("Total rows dropped: %d\n", s.TotalDropped)
	logger.Printf("Total processing time: %v\n", s.Duration)
	logger.Println(strings.Repeat("=", 60))
}
