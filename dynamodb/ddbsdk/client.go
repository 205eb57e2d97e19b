package ddbsdk

import (
	"context"

	"github.com/acksell/ddbpersist/dynamodb/ddbiface"
)

func New(awsddb AWSDynamoClientV2) *Client {
	return &Client{
		awsddb: awsddb,
	}
}

type Client struct {
	awsddb AWSDynamoClientV2
}

var _ IO = &Client{}

// NewTx creates a new transaction. Add actions and commit the transaction.
func (c *Client) NewTx(opts ...TxOption) Txer {
	return NewTx(c.awsddb, opts...)
}

// NewBatch creates a new write-batch. Add actions and execute the batch writes.
func (c *Client) NewBatch(opts ...BatchOption) Batcher {
	return NewBatcher(c.awsddb, opts...)
}

// NewLookup creates a new getter for direct lookups by primary key.
//
// Options: [WithEventualConsistency], [WithGetBackoff]
func (c *Client) NewLookup(opts ...GetOption) Getter {
	return NewGetter(c.awsddb, opts...)
}

func (c *Client) PutItem(ctx context.Context, p *Put) error {
	put, err := p.ToPutItem()
	if err != nil {
		return err
	}
	_, err = c.awsddb.PutItem(ctx, put)
	return ddbiface.NewStorageError("PutItem", err)
}

func (c *Client) DeleteItem(ctx context.Context, d *Delete) error {
	del, err := d.ToDeleteItem()
	if err != nil {
		return err
	}
	_, err = c.awsddb.DeleteItem(ctx, del)
	return ddbiface.NewStorageError("DeleteItem", err)
}
