// Package matcher embeds the lost-and-found matching engine in a Go program,
// without running the HTTP service.
//
//	m, _ := matcher.New(ctx,
//	    matcher.WithRedis("localhost:6379", ""),
//	    matcher.WithEmbedder(myEmbedder),
//	)
//	defer m.Close()
//
//	item, _ := m.Report(ctx, matcher.Report{Kind: matcher.Lost, Title: "Black wallet", Location: "Library"})
//	res, _ := m.Match(ctx, item.ID)
//	for _, hit := range res.Matches {
//	    fmt.Println(hit.ItemID, hit.Score, hit.Reasons)
//	}
package matcher
