package main

import (
	"context"
	"fmt"

	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/candidate"
	"github.com/jonjonssons/sacore-ai-web-sub002/pkg/reconcile"
	"github.com/jonjonssons/sacore-ai-web-sub002/test/template/processor"
)

func main() {
	records := []candidate.Record{{ID: "1", FullName: "alice example"}}
	store := reconcile.NewStore(records, reconcile.StoreOptions{ClearDelay: -1})
	defer store.Close()

	op := reconcile.NewOperation(processor.Kind, "demo")
	targets := []reconcile.Target{{RecordID: "1", Origin: reconcile.OriginProvider}}
	s, err := processor.Flow().Begin(store, op, targets, processor.Opener(context.Background(), records))
	if err != nil {
		panic(err)
	}
	<-s.Done()
	fmt.Println(store.Records()[0].Title)
}
