// Package linkage resolves which records across noisy datasets refer to the
// same real-world entity. A run flows through three stages: blocking reduces
// the quadratic comparison space to candidate pairs, weighted probabilistic
// scoring classifies each pair, and graph clustering groups matched pairs
// into entity clusters via connected components.
//
// The Pipeline type wires the stages together:
//
//	pipe, err := linkage.New(blocker, scorer, clusterer)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := pipe.Run(ctx, records)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, c := range result.Clusters {
//	    fmt.Println(c.ID, c.Members)
//	}
//
// Each stage is also usable on its own: see the block, score and cluster
// packages.
package linkage
