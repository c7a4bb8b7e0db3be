package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/BalaMeghanaShivani/CarbonLane/internal/model"
	"github.com/BalaMeghanaShivani/CarbonLane/internal/repository/sqlite"
	"github.com/BalaMeghanaShivani/CarbonLane/internal/service/storage"
)

func main() {
	imagesDir := flag.String("images", "images", "Directory containing plate snapshots")
	dbPath := flag.String("db", "data/carbonlane.db", "Database path")
	retainDays := flag.Int("retain-days", 0, "Delete sightings older than this many days (0 keeps everything)")
	flag.Parse()

	fmt.Printf("Importing snapshots from %s into database %s\n", *imagesDir, *dbPath)

	// Initialize database
	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	repo := sqlite.NewSightingRepository(db)

	// Scan images directory
	files, err := os.ReadDir(*imagesDir)
	if err != nil {
		log.Fatalf("Failed to read images directory: %v", err)
	}

	var sightings []model.Sighting
	skipped := 0
	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".jpg" {
			continue
		}

		timestamp, camera, plates, err := storage.ParseSnapshotFilename(file.Name())
		if err != nil {
			log.Printf("⚠️  Skipping %s: %v", file.Name(), err)
			skipped++
			continue
		}

		for _, plate := range plates {
			sightings = append(sightings, model.Sighting{
				Plate:     plate,
				Camera:    camera,
				Filename:  file.Name(),
				Timestamp: timestamp,
			})
		}
	}

	if len(sightings) > 0 {
		fmt.Printf("Inserting %d sightings into database...\n", len(sightings))
		if err := repo.InsertBatch(sightings); err != nil {
			log.Fatalf("Failed to insert sightings: %v", err)
		}
		fmt.Printf("✅ Successfully imported %d sightings\n", len(sightings))
	} else {
		fmt.Println("No plate snapshots found to import")
	}
	if skipped > 0 {
		fmt.Printf("⚠️  Skipped %d files (invalid format or errors)\n", skipped)
	}

	if *retainDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -*retainDays)
		deleted, err := repo.DeleteOlderThan(cutoff)
		if err != nil {
			log.Fatalf("Failed to prune sightings: %v", err)
		}
		fmt.Printf("🧹 Deleted %d sightings older than %s\n", deleted, cutoff.Format(time.DateOnly))
	}

	// Show stats
	all, err := repo.GetSince(time.Time{})
	if err == nil {
		perPlate := make(map[string]int)
		for _, s := range all {
			perPlate[s.Plate]++
		}
		fmt.Printf("\n📊 Database Statistics:\n")
		fmt.Printf("   Total sightings: %d\n", len(all))
		fmt.Printf("   Distinct plates: %d\n", len(perPlate))
	}
}
