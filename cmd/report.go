package cmd

import (
	"io"
	"os"

	"github.com/kilianp07/voi/core/model"
	"github.com/kilianp07/voi/pkg/export"
)

// writeReport emits the JSON report and every requested export.
func writeReport(stdout io.Writer, rep *model.Report) error {
	if outPath == "" {
		if err := export.WriteJSON(stdout, rep); err != nil {
			return err
		}
	} else if err := writeFile(outPath, rep, export.WriteJSON); err != nil {
		return err
	}
	if csvPath != "" {
		if err := writeFile(csvPath, rep, export.WriteCSV); err != nil {
			return err
		}
	}
	if htmlPath != "" {
		if err := writeFile(htmlPath, rep, export.WriteHTML); err != nil {
			return err
		}
	}
	if xlsxPath != "" {
		if err := export.WriteXLSX(xlsxPath, rep); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, rep *model.Report, write func(io.Writer, *model.Report) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return write(f, rep)
}
