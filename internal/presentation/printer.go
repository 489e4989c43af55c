package presentation

import (
	"fmt"
	"io"
	"time"

	"capcache/internal/domain"
)

type Printer struct {
	Writer  io.Writer
	Verbose bool
}

func (p Printer) PrintSaved(result domain.SaveResult) {
	fmt.Fprintln(p.Writer, result.Ref)
	if !p.Verbose {
		return
	}
	fmt.Fprintln(p.Writer)
	fmt.Fprintf(p.Writer, "Source:  %s\n", result.Source)
	fmt.Fprintf(p.Writer, "Cached:  %s\n", result.Path)
	fmt.Fprintf(p.Writer, "Size:    %s\n", formatBytes(result.Bytes))
}

func (p Printer) PrintInspect(info domain.CaptureInfo) {
	fmt.Fprintln(p.Writer, "Cached capture:")
	fmt.Fprintln(p.Writer)
	fmt.Fprintf(p.Writer, "Path:      %s\n", info.Path)
	fmt.Fprintf(p.Writer, "Size:      %s\n", formatBytes(info.Size))
	fmt.Fprintf(p.Writer, "Modified:  %s\n", formatTime(&info.ModTime))
	if info.IsJPEG {
		fmt.Fprintln(p.Writer, "Format:    JPEG")
	} else {
		fmt.Fprintln(p.Writer, "Format:    unknown (no JPEG header)")
	}
	if info.TakenAt != nil {
		fmt.Fprintf(p.Writer, "Taken:     %s\n", formatTime(info.TakenAt))
	} else if p.Verbose {
		fmt.Fprintln(p.Writer, "Taken:     no EXIF capture time")
	}
}

func (p Printer) PrintResolved(ref domain.ShareableRef, path string) {
	if p.Verbose {
		fmt.Fprintf(p.Writer, "%s -> %s\n", ref, path)
		return
	}
	fmt.Fprintln(p.Writer, path)
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB (%d bytes)", float64(n)/float64(div), "KMGTPE"[exp], n)
}

func formatTime(value *time.Time) string {
	if value == nil || value.IsZero() {
		return "-"
	}
	return value.Format("2006-01-02 15:04:05")
}
