package ddbstore

import (
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dgraph-io/badger/v4"
)

// itemKey extracts and encodes the primary key of a key or item map.
func (t *tableSchema) itemKey(attrs map[string]types.AttributeValue) ([]byte, error) {
	pk, err := t.definition.ExtractPrimaryKey(attrs)
	if err != nil {
		return nil, validationError("The provided key element does not match the schema: %s", err.Error())
	}
	key, err := t.encodeKey(pk)
	if err != nil {
		return nil, validationError("The provided key element does not match the schema: %s", err.Error())
	}
	return key, nil
}

// readItem returns the stored item, or nil when there is none.
func readItem(txn *badger.Txn, key []byte) (map[string]types.AttributeValue, error) {
	badgerItem, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var item map[string]types.AttributeValue
	err = badgerItem.Value(func(val []byte) error {
		item, err = DeserializeItem(val)
		return err
	})
	return item, err
}

// writeItem stores item under key, keeping the GSIs in sync with the previous version.
func writeItem(txn *badger.Txn, t *tableSchema, key []byte, item, oldItem map[string]types.AttributeValue) error {
	itemBytes, err := SerializeItem(item)
	if err != nil {
		return fmt.Errorf("serialize item: %w", err)
	}
	if err := txn.Set(key, itemBytes); err != nil {
		return err
	}
	for _, gsi := range t.gsis {
		if err := updateGSI(txn, gsi, item, oldItem, itemBytes); err != nil {
			return fmt.Errorf("update GSI %s: %w", gsi.definition.Name, err)
		}
	}
	return nil
}

// removeItem deletes the item under key and its GSI entries.
func removeItem(txn *badger.Txn, t *tableSchema, key []byte, oldItem map[string]types.AttributeValue) error {
	if oldItem == nil {
		return nil
	}
	if err := txn.Delete(key); err != nil {
		return err
	}
	for _, gsi := range t.gsis {
		if err := updateGSI(txn, gsi, nil, oldItem, nil); err != nil {
			return fmt.Errorf("update GSI %s: %w", gsi.definition.Name, err)
		}
	}
	return nil
}

// updateGSI moves the index entry of an item from its old index key to its new one.
// Items without a complete index key are not indexed.
func updateGSI(txn *badger.Txn, gsi *gsiSchema, newItem, oldItem map[string]types.AttributeValue, itemBytes []byte) error {
	if oldItem != nil {
		if oldPK, err := gsi.definition.ExtractPrimaryKey(oldItem); err == nil {
			oldKey, err := gsi.encodeKey(oldPK)
			if err == nil {
				if err := txn.Delete(oldKey); err != nil {
					return err
				}
			}
		}
	}
	if newItem == nil {
		return nil
	}
	newPK, err := gsi.definition.ExtractPrimaryKey(newItem)
	if err != nil {
		return nil
	}
	newKey, err := gsi.encodeKey(newPK)
	if err != nil {
		return fmt.Errorf("encode GSI key: %w", err)
	}
	return txn.Set(newKey, itemBytes)
}
