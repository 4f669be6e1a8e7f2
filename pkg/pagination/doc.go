// Package pagination walks APIs that link result pages through a "next" URL.
//
// Pages are fetched one after another because the address of page n+1 is
// only known once page n has been decoded. The walk stops when a page has no
// next link, and fails without a partial result when any page fails, when a
// next link points at a page already visited, or when the page cap is hit.
//
// Example usage:
//
//	walker := pagination.NewWalker(pagination.DefaultConfig())
//	keys, err := pagination.Collect(ctx, walker, firstPageURL,
//		func(ctx context.Context, pageURL string) ([]string, string, error) {
//			page, err := fetch(ctx, pageURL)
//			if err != nil {
//				return nil, "", err
//			}
//			return page.Keys(), page.Next, nil
//		})
package pagination
