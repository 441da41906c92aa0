package shelf

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/kerbaras/shelf/pkg/data"
	"github.com/kerbaras/shelf/pkg/services"
)

func findBook(ctx context.Context, query string) *data.Book {
	book, err := env.controller.FindBook(ctx, query)
	check(err)
	return book
}

func parsePage(s string) (int, error) {
	page, err := strconv.Atoi(s)
	if err != nil || page < 1 {
		return 0, fmt.Errorf("invalid page %q: must be a positive number", s)
	}
	return page, nil
}

func formatProgress(p *data.Progress) string {
	if p == nil || p.Page == 0 {
		return "-"
	}
	if p.TotalPages == 0 {
		return fmt.Sprintf("p.%d", p.Page)
	}
	return fmt.Sprintf("%d/%d (%.0f%%)", p.Page, p.TotalPages, p.Percent)
}

// printTransfers prints progress updates in 10% steps until stop is
// called. stop waits for what was already buffered.
func printTransfers(ch <-chan services.TransferProgress) (stop func()) {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)

	report := func(p services.TransferProgress, last *int) {
		switch p.Status {
		case services.StatusDownloading, services.StatusUploading:
			if p.Total > 0 && p.Percent/10 > *last/10 {
				*last = p.Percent
				mutedColor.Printf("  %s %s: %d%%\n", p.Status, p.Title, p.Percent)
			}
		case services.StatusError:
			warnf("%s failed: %v", p.Title, p.Error)
		}
	}

	go func() {
		defer wg.Done()
		last := -10
		for {
			select {
			case p, ok := <-ch:
				if !ok {
					return
				}
				report(p, &last)
			case <-done:
				for {
					select {
					case p, ok := <-ch:
						if !ok {
							return
						}
						report(p, &last)
					default:
						return
					}
				}
			}
		}
	}()

	return func() {
		close(done)
		wg.Wait()
	}
}
