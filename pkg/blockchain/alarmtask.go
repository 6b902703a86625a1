package blockchain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"
)

// AlarmCallback is notified on every new head. Returning a non-nil
// error unregisters it.
type AlarmCallback func(blockNumber int64) error

// callbackHandle pairs a registered callback with an id so it can be
// found and removed later without comparing function values or the
// addresses of loop-local copies.
type callbackHandle struct {
	id int64
	cb AlarmCallback
}

// AlarmTask notifies registered callbacks when a new block is mined,
// and drives SyncService over the range between the previously seen
// head and the new one so every batch of logs in between gets decoded
// before the Block tick for the new head is delivered.
type AlarmTask struct {
	client          *ethclient.Client
	sync            *SyncService
	lastBlockNumber int64
	shouldStop      chan struct{}
	waitTime        time.Duration
	callback        []callbackHandle
	nextID          int64
	lock            sync.Mutex
}

// NewAlarmTask builds an AlarmTask watching client for new heads and,
// if sync is non-nil, running it over every range of blocks between
// two consecutive heads before notifying callbacks.
func NewAlarmTask(client *ethclient.Client, sync *SyncService) *AlarmTask {
	t := &AlarmTask{
		client:          client,
		sync:            sync,
		waitTime:        time.Second,
		lastBlockNumber: -1,
		shouldStop:      make(chan struct{}),
	}
	return t
}

// RegisterCallback registers a new callback and returns a handle id
// that can later be passed to RemoveCallback.
//
// Note: the callback runs in the AlarmTask's own goroutine and must
// not block, otherwise block notifications back up.
func (this *AlarmTask) RegisterCallback(callback AlarmCallback) int64 {
	this.lock.Lock()
	defer this.lock.Unlock()
	this.nextID++
	id := this.nextID
	this.callback = append(this.callback, callbackHandle{id: id, cb: callback})
	return id
}

// RemoveCallback removes the callback registered under id, if any.
func (this *AlarmTask) RemoveCallback(id int64) {
	this.lock.Lock()
	defer this.lock.Unlock()
	for k, h := range this.callback {
		if h.id == id {
			this.callback = append(this.callback[:k], this.callback[k+1:]...)
			return
		}
	}
}

func (this *AlarmTask) run() {
	log.Debug(fmt.Sprintf("starting block number blocknumber=%d", this.lastBlockNumber))
	for {
		err := this.waitNewBlock()
		if err != nil {
			time.Sleep(this.waitTime)
		}
	}
}

func (this *AlarmTask) waitNewBlock() error {
	currentBlock := this.lastBlockNumber
	headerCh := make(chan *types.Header, 1)
	h, err := this.client.HeaderByNumber(context.Background(), nil)
	if err != nil {
		return err
	}
	headerCh <- h
	sub, err := this.client.SubscribeNewHead(context.Background(), headerCh)
	if err != nil {
		log.Warn("SubscribeNewHead block number err:", "err", err)
		return err
	}
	for {
		select {
		case h, ok := <-headerCh:
			if !ok {
				return errors.New("SubscribeNewHead channel closed unexpected")
			}
			newBlock := h.Number.Int64()
			if currentBlock != -1 && newBlock != currentBlock+1 {
				log.Warn(fmt.Sprintf("alarm missed %d blocks", newBlock-currentBlock))
			}
			if this.sync != nil && currentBlock != -1 && newBlock > currentBlock {
				if err := this.sync.Sync(context.Background(), currentBlock+1, newBlock); err != nil {
					log.Warn("blockchain: sync over new block range failed", "from", currentBlock+1, "to", newBlock, "err", err)
				}
			}
			currentBlock = newBlock
			this.lastBlockNumber = currentBlock
			log.Trace(fmt.Sprintf("new block :%d", currentBlock))

			this.lock.Lock()
			callbacks := make([]callbackHandle, len(this.callback))
			copy(callbacks, this.callback)
			this.lock.Unlock()

			var removeIDs []int64
			for _, h := range callbacks {
				if err := h.cb(currentBlock); err != nil {
					removeIDs = append(removeIDs, h.id)
				}
			}
			for _, id := range removeIDs {
				this.RemoveCallback(id)
			}
		case <-this.shouldStop:
			sub.Unsubscribe()
			close(headerCh)
			return nil
		}
	}
}

// Start begins watching for new blocks in the background.
func (this *AlarmTask) Start() {
	go this.run()
}

// Stop ends the watch loop.
func (this *AlarmTask) Stop() {
	this.shouldStop <- struct{}{}
	close(this.shouldStop)
}
