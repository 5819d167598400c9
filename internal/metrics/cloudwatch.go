package metrics

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/rs/zerolog"

	"github.com/openfloat/go-payment-switch/internal/aws"
)

const namespace = "PaymentSwitch"

// Recorder publishes state-transition counters to CloudWatch. Emission is
// best-effort: a metrics failure never fails the payment operation.
type Recorder struct {
	client aws.CloudWatchAPI
	log    zerolog.Logger
}

// NewRecorder returns a Recorder over the given CloudWatch client.
func NewRecorder(client aws.CloudWatchAPI, log zerolog.Logger) *Recorder {
	return &Recorder{client: client, log: log}
}

// RecordTransition counts one transition into status for a connector.
func (r *Recorder) RecordTransition(ctx context.Context, connectorName, status string) {
	metricName := "StateTransition"
	one := 1.0
	now := time.Now()

	input := &cloudwatch.PutMetricDataInput{
		Namespace: awsString(namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: &metricName,
				Value:      &one,
				Timestamp:  &now,
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{
					{Name: awsString("Connector"), Value: &connectorName},
					{Name: awsString("Status"), Value: &status},
				},
			},
		},
	}
	if _, err := r.client.PutMetricData(ctx, input); err != nil {
		r.log.Warn().Err(err).
			Str("connector", connectorName).
			Str("status", status).
			Msg("failed to publish transition metric")
	}
}

func awsString(s string) *string { return &s }
