package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strings"

	appservices "virtual-tryon/internal/application/services"
	"virtual-tryon/internal/domain/entities"
)

var validExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}

func main() {
	in := flag.String("in", "images", "directory of sample images")
	out := flag.String("out", "encoded", "directory for the .txt data URLs")
	flag.Parse()

	n, err := encodeDir(context.Background(), *in, *out)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("Encoded %d images into %s", n, *out)
}

// encodeDir writes <name>.txt holding the data URL of every image in in.
// Files that are not images are skipped with a log line.
func encodeDir(ctx context.Context, in, out string) (int, error) {
	files, err := os.ReadDir(in)
	if err != nil {
		return 0, err
	}

	if err := os.MkdirAll(out, 0o755); err != nil {
		return 0, err
	}

	// sink is unused: Read decodes synchronously without delivering
	intake := appservices.NewIntakeService(entities.SlotPerson, nil)

	count := 0
	for _, file := range files {
		if file.IsDir() || !slices.Contains(validExtensions, strings.ToLower(filepath.Ext(file.Name()))) {
			continue
		}

		dataURL, err := encode(ctx, intake, filepath.Join(in, file.Name()))
		if err != nil {
			log.Printf("skip %s: %v", file.Name(), err)
			continue
		}

		// 拡張子を除いたファイル名で保存
		name := strings.TrimSuffix(file.Name(), filepath.Ext(file.Name())) + ".txt"
		if err := os.WriteFile(filepath.Join(out, name), []byte(dataURL), 0o644); err != nil {
			return count, fmt.Errorf("failed to write %s: %w", name, err)
		}
		count++
	}

	return count, nil
}

func encode(ctx context.Context, intake *appservices.IntakeService, path string) (string, error) {
	file, closer, err := appservices.OpenFile(path)
	if err != nil {
		return "", err
	}
	defer closer.Close()

	img, err := intake.Read(ctx, file)
	if err != nil {
		return "", err
	}
	return img.DataURL(), nil
}
