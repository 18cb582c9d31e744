package kafka_config

import "time"

const (
	DefaultKafkaBrokers  = "localhost:9092"
	DefaultKafkaClientID = "stazy-bookings"

	// booking.created is the only produced topic; acks=all keeps an
	// acknowledged event from being lost on leader failover.
	DefaultProducerMaxAttempts    = 3
	DefaultProducerBatchTimeout   = 10 * time.Millisecond
	DefaultProducerRequireAcks    = -1
	DefaultProducerCompression    = "snappy"
	DefaultProducerWriteTimeout   = 5 * time.Second
	DefaultAllowAutoTopicCreation = false

	// Settlements consumed by a new group start at the oldest offset so a
	// payment made while the service was down is still reconciled.
	DefaultConsumerStartOffset       = -2
	DefaultConsumerMinBytes          = 1
	DefaultConsumerMaxBytes          = 1 << 20
	DefaultConsumerMaxWait           = 500 * time.Millisecond
	DefaultConsumerCommitInterval    = 0
	DefaultConsumerHeartbeatInterval = 3 * time.Second
	DefaultConsumerSessionTimeout    = 10 * time.Second
	DefaultConsumerRebalanceTimeout  = 30 * time.Second
)
