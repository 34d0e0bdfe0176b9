// Copyright 2026 recsys Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dataset

import (
	"sort"

	"github.com/juju/errors"
	"github.com/projecthub/recsys/base"
	"github.com/samber/lo"
)

// LanguageList is the list of project languages. Language id i+1 refers to
// LanguageList[i]; language id 0 is reserved for unknown languages.
var LanguageList = []string{"py", "js", "ts", "rs", "c", "cpp", "cs", "sh", "java"}

// NumLanguages is the number of language ids including the unknown language.
var NumLanguages = len(LanguageList) + 1

// LanguageId converts a language code to a language id.
func LanguageId(code string) int32 {
	if i := lo.IndexOf(LanguageList, code); i >= 0 {
		return int32(i + 1)
	}
	return 0
}

// ItemRecord is the feature record of an item.
type ItemRecord struct {
	ItemId     int32
	TagIds     []int32
	LanguageId int32
}

// ItemBatch is a column-oriented batch of item features.
type ItemBatch struct {
	Ids   []int32
	Tags  [][]int32
	Langs []int32
}

// NewItemBatch gathers the features of items into a batch.
func NewItemBatch(items []ItemRecord) ItemBatch {
	batch := ItemBatch{
		Ids:   make([]int32, len(items)),
		Tags:  make([][]int32, len(items)),
		Langs: make([]int32, len(items)),
	}
	for i, item := range items {
		batch.Ids[i] = item.ItemId
		batch.Tags[i] = item.TagIds
		batch.Langs[i] = item.LanguageId
	}
	return batch
}

func (b ItemBatch) Len() int {
	return len(b.Ids)
}

func (b ItemBatch) Validate() error {
	if len(b.Tags) != len(b.Ids) || len(b.Langs) != len(b.Ids) {
		return errors.NotValidf("item batch with %d ids, %d tag lists and %d languages",
			len(b.Ids), len(b.Tags), len(b.Langs))
	}
	return nil
}

// Batch is a training batch. Row i holds a user, the history of the user, a positive
// item and a negative item.
type Batch struct {
	UserIds   []int32
	Histories [][]int32
	Positives ItemBatch
	Negatives ItemBatch
}

func (b *Batch) Len() int {
	return len(b.UserIds)
}

// Validate checks that all columns of the batch are aligned.
func (b *Batch) Validate() error {
	if err := b.Positives.Validate(); err != nil {
		return errors.Annotate(err, "positives")
	}
	if err := b.Negatives.Validate(); err != nil {
		return errors.Annotate(err, "negatives")
	}
	n := len(b.UserIds)
	if len(b.Histories) != n || b.Positives.Len() != n || b.Negatives.Len() != n {
		return errors.NotValidf("batch with %d users, %d histories, %d positives and %d negatives",
			n, len(b.Histories), b.Positives.Len(), b.Negatives.Len())
	}
	return nil
}

// Dataset holds item features and user histories indexed for training.
type Dataset struct {
	itemIndex     *FreqDict
	items         []ItemRecord
	userHistories map[int32][]int32
	numUsers      int32
	numTags       int32
	numFeedback   int
}

func NewDataset() *Dataset {
	return &Dataset{
		itemIndex:     NewFreqDict(),
		userHistories: make(map[int32][]int32),
	}
}

// AddItem registers a project with its tags and language code and returns the index of
// the project. Adding a project twice replaces its features.
func (d *Dataset) AddItem(projectId int64, tagIds []int32, lang string) (int32, error) {
	for _, tagId := range tagIds {
		if tagId < 0 {
			return 0, errors.NotValidf("tag id %d of project %d", tagId, projectId)
		}
		d.numTags = max(d.numTags, tagId+1)
	}
	index := d.itemIndex.NotCount(projectId)
	record := ItemRecord{ItemId: index, TagIds: tagIds, LanguageId: LanguageId(lang)}
	if int(index) < len(d.items) {
		d.items[index] = record
	} else {
		d.items = append(d.items, record)
	}
	return index, nil
}

// AddInteraction appends a project to the history of a user. Interactions with unknown
// projects are dropped and reported by the return value.
func (d *Dataset) AddInteraction(userId int32, projectId int64) (bool, error) {
	if userId < 0 {
		return false, errors.NotValidf("user id %d", userId)
	}
	index, ok := d.itemIndex.Index(projectId)
	if !ok {
		return false, nil
	}
	d.itemIndex.Id(projectId)
	d.userHistories[userId] = append(d.userHistories[userId], index)
	d.numUsers = max(d.numUsers, userId+1)
	d.numFeedback++
	return true, nil
}

func (d *Dataset) GetItemIndex() *FreqDict {
	return d.itemIndex
}

func (d *Dataset) GetItems() []ItemRecord {
	return d.items
}

func (d *Dataset) GetUserHistory(userId int32) []int32 {
	return d.userHistories[userId]
}

// GetUsers returns users with at least one interaction in ascending order.
func (d *Dataset) GetUsers() []int32 {
	users := lo.Keys(d.userHistories)
	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })
	return users
}

func (d *Dataset) CountItems() int {
	return len(d.items)
}

// CountUsers returns the size of the user id space, which is the largest user id plus one.
func (d *Dataset) CountUsers() int {
	return int(d.numUsers)
}

// CountTags returns the size of the tag id space, at least one.
func (d *Dataset) CountTags() int {
	return max(int(d.numTags), 1)
}

func (d *Dataset) CountFeedback() int {
	return d.numFeedback
}

// Batches splits users into batches of batchSize. Each user gets a positive item sampled
// uniformly from its history and a negative item sampled uniformly from all items.
// Negatives may coincide with items in the history.
func (d *Dataset) Batches(rng base.RandomGenerator, batchSize int) ([]*Batch, error) {
	if batchSize <= 0 {
		return nil, errors.NotValidf("batch size %d", batchSize)
	}
	if len(d.items) == 0 {
		return nil, errors.NotFoundf("items")
	}
	var batches []*Batch
	for _, users := range lo.Chunk(d.GetUsers(), batchSize) {
		positives := make([]ItemRecord, len(users))
		negatives := make([]ItemRecord, len(users))
		histories := make([][]int32, len(users))
		for i, userId := range users {
			histories[i] = d.userHistories[userId]
			positives[i] = d.items[base.Choice(rng, histories[i])]
			negatives[i] = d.items[rng.Intn(len(d.items))]
		}
		batches = append(batches, &Batch{
			UserIds:   users,
			Histories: histories,
			Positives: NewItemBatch(positives),
			Negatives: NewItemBatch(negatives),
		})
	}
	return batches, nil
}

// SplitLeaveOneOut holds out the last interaction of every user with at least two
// interactions. It returns the training dataset and the held-out item of each user.
func (d *Dataset) SplitLeaveOneOut() (*Dataset, map[int32]int32) {
	train := &Dataset{
		itemIndex:     d.itemIndex,
		items:         d.items,
		userHistories: make(map[int32][]int32, len(d.userHistories)),
		numUsers:      d.numUsers,
		numTags:       d.numTags,
	}
	test := make(map[int32]int32)
	for userId, history := range d.userHistories {
		if len(history) >= 2 {
			train.userHistories[userId] = history[:len(history)-1]
			test[userId] = history[len(history)-1]
		} else {
			train.userHistories[userId] = history
		}
		train.numFeedback += len(train.userHistories[userId])
	}
	return train, test
}
